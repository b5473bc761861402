package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates security-relevant event kinds.
type ActivityEventType string

const (
	ActivityEventRegister               ActivityEventType = "auth.register"
	ActivityEventLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefresh           ActivityEventType = "auth.token.refresh"
	ActivityEventTokenRevoke            ActivityEventType = "auth.token.revoke"
	ActivityEventLogout                 ActivityEventType = "auth.logout"
	ActivityEventPasswordResetRequested ActivityEventType = "auth.password.reset_requested"
	ActivityEventPasswordReset          ActivityEventType = "auth.password.reset"
	ActivityEventPasswordChange         ActivityEventType = "auth.password.change"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit information about a credential operation.
// UserID may be empty for pre-authentication failures where no identity
// was resolved; Email carries whatever identifier the caller presented.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Email      string
	Client     ClientInfo
	Success    bool
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing purposes. Sinks run
// best-effort: record errors are logged by the caller, never propagated
// to the operation outcome.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
