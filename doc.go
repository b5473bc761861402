// Package auth implements a credential and session lifecycle engine:
// registration, password login, signed access tokens, refresh-token
// rotation, revocation, password reset, and a security audit trail.
//
// Credential handling:
//   - Passwords are stored as bcrypt hashes. Refresh and reset secrets
//     are high-entropy random strings; only their digests are persisted,
//     so the plaintext exists exactly once, in the response that issued
//     it.
//   - Refresh sessions rotate on every use. A rotated secret can never
//     be replayed: concurrent refreshes race on a guarded update and
//     exactly one wins.
//
// Orchestration:
//   - Auther owns the login, refresh, logout, and revocation flows.
//     Command handlers (RegisterUserHandler, the password reset pair,
//     ChangePasswordHandler) cover the write-heavy lifecycle operations
//     and run inside store transactions.
//   - All credential failures surface as the same error per operation
//     family; the audit trail carries the distinguishing detail.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter. Every orchestrated
//     operation records exactly one event, success or failure. Sink
//     errors are logged and never fail the operation; use
//     StoreActivitySink to persist events next to the credentials.
package auth
