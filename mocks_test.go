package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	auth "github.com/docuarc/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// testConfig returns a config suitable for unit tests: real signing key,
// short TTLs so expiry can be exercised without sleeping.
func testConfig() auth.EngineConfig {
	cfg := auth.DefaultEngineConfig("test-signing-key-with-enough-entropy")
	cfg.Issuer = "go-auth-test"
	cfg.Audience = []string{"go-auth-test"}
	return cfg
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// capturingSink records every activity event it sees.
type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) Events() []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *capturingSink) Last() (auth.ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return auth.ActivityEvent{}, false
	}
	return s.events[len(s.events)-1], true
}

type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	return m.Called().Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// RunInTx executes the transaction body against a zero tx and returns
// its error, unless the expectation was configured to fail outright.
// Store mocks accept mock.Anything for the tx argument, so the zero
// value never reaches real SQL.
func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) Users() auth.Users {
	return m.Called().Get(0).(auth.Users)
}

func (m *MockRepositoryManager) Sessions() auth.Sessions {
	return m.Called().Get(0).(auth.Sessions)
}

func (m *MockRepositoryManager) PasswordResets() auth.PasswordResets {
	return m.Called().Get(0).(auth.PasswordResets)
}

func (m *MockRepositoryManager) Roles() auth.Roles {
	return m.Called().Get(0).(auth.Roles)
}

func (m *MockRepositoryManager) SecurityEvents() auth.SecurityEvents {
	return m.Called().Get(0).(auth.SecurityEvents)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*auth.User, error) {
	args := m.Called(ctx, tx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *auth.User) (*auth.User, error) {
	args := m.Called(ctx, record)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateTx echoes the input record when the expectation returns nil,
// mirroring the real repository which hands back the stored row.
func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *MockUsers) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUsers) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return m.Called(ctx, tx, id, passwordHash).Error(0)
}

func (m *MockUsers) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Create(ctx context.Context, record *auth.RefreshSession) (*auth.RefreshSession, error) {
	args := m.Called(ctx, record)
	if s := args.Get(0); s != nil {
		return s.(*auth.RefreshSession), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *MockSessions) CreateTx(ctx context.Context, tx bun.IDB, record *auth.RefreshSession) (*auth.RefreshSession, error) {
	args := m.Called(ctx, tx, record)
	if s := args.Get(0); s != nil {
		return s.(*auth.RefreshSession), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *MockSessions) GetByID(ctx context.Context, id uuid.UUID) (*auth.RefreshSession, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*auth.RefreshSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessions) ActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]*auth.RefreshSession, error) {
	args := m.Called(ctx, userID, at)
	if s := args.Get(0); s != nil {
		return s.([]*auth.RefreshSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessions) ActiveByDigest(ctx context.Context, digest string, at time.Time) (*auth.RefreshSession, error) {
	args := m.Called(ctx, digest, at)
	if s := args.Get(0); s != nil {
		return s.(*auth.RefreshSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessions) MarkRotatedTx(ctx context.Context, tx bun.IDB, id, replacedBy uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, replacedBy, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessions) Revoke(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessions) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, userID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessions) RevokeAllForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, tx, userID, at)
	return args.Get(0).(int64), args.Error(1)
}

type MockPasswordResets struct {
	mock.Mock
}

func (m *MockPasswordResets) Create(ctx context.Context, record *auth.PasswordReset) (*auth.PasswordReset, error) {
	args := m.Called(ctx, record)
	if r := args.Get(0); r != nil {
		return r.(*auth.PasswordReset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswordResets) CreateTx(ctx context.Context, tx bun.IDB, record *auth.PasswordReset) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tx, record)
	if r := args.Get(0); r != nil {
		return r.(*auth.PasswordReset), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *MockPasswordResets) Active(ctx context.Context, at time.Time) ([]*auth.PasswordReset, error) {
	args := m.Called(ctx, at)
	if r := args.Get(0); r != nil {
		return r.([]*auth.PasswordReset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswordResets) ActiveTx(ctx context.Context, tx bun.IDB, at time.Time) ([]*auth.PasswordReset, error) {
	args := m.Called(ctx, tx, at)
	if r := args.Get(0); r != nil {
		return r.([]*auth.PasswordReset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswordResets) ActiveByUser(ctx context.Context, userID uuid.UUID, at time.Time) ([]*auth.PasswordReset, error) {
	args := m.Called(ctx, userID, at)
	if r := args.Get(0); r != nil {
		return r.([]*auth.PasswordReset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswordResets) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordResets) SupersedeForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockRoles struct {
	mock.Mock
}

func (m *MockRoles) GetByName(ctx context.Context, name string) (*auth.Role, error) {
	args := m.Called(ctx, name)
	if r := args.Get(0); r != nil {
		return r.(*auth.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoles) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*auth.Role, error) {
	args := m.Called(ctx, tx, name)
	if r := args.Get(0); r != nil {
		return r.(*auth.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoles) AssignTx(ctx context.Context, tx bun.IDB, userID, roleID uuid.UUID) error {
	return m.Called(ctx, tx, userID, roleID).Error(0)
}

func (m *MockRoles) RolesByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoles) PermissionsByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSecurityEvents struct {
	mock.Mock
}

func (m *MockSecurityEvents) Append(ctx context.Context, record *auth.SecurityEvent) error {
	return m.Called(ctx, record).Error(0)
}
