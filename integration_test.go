package auth_test

import (
	"context"
	"testing"

	auth "github.com/docuarc/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupStore(t *testing.T) (*bun.DB, auth.RepositoryManager) {
	t.Helper()

	db, err := auth.OpenSQLite(":memory:")
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive across the
	// pool.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, auth.CreateSchema(context.Background(), db))

	return db, auth.NewRepositoryManager(db)
}

func seedDefaultRole(t *testing.T, db *bun.DB) *auth.Role {
	t.Helper()

	role := &auth.Role{ID: uuid.New(), Name: auth.RoleUser}
	_, err := db.NewInsert().Model(role).Exec(context.Background())
	require.NoError(t, err)

	perm := &auth.Permission{ID: uuid.New(), Name: "posts:read"}
	_, err = db.NewInsert().Model(perm).Exec(context.Background())
	require.NoError(t, err)

	link := &auth.RolePermission{RoleID: role.ID, PermissionID: perm.ID}
	_, err = db.NewInsert().Model(link).Exec(context.Background())
	require.NoError(t, err)

	return role
}

func registerTestUser(t *testing.T, repo auth.RepositoryManager, sink auth.ActivitySink, email, password string) *auth.User {
	t.Helper()

	var resp *auth.RegisterUserResponse
	handler := auth.NewRegisterUserHandler(repo, testConfig()).
		WithActivitySink(sink).
		WithLogger(testLogger{})

	err := handler.Execute(context.Background(), auth.RegisterUserMessage{
		FirstName: "Integration",
		LastName:  "Tester",
		Email:     email,
		Password:  password,
		OnResponse: func(r *auth.RegisterUserResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	return resp.User
}

func TestLifecycleRegisterLoginRefresh(t *testing.T) {
	db, repo := setupStore(t)
	seedDefaultRole(t, db)
	sink := auth.NewStoreActivitySink(repo.SecurityEvents()).WithLogger(testLogger{})

	ctx := context.Background()
	user := registerTestUser(t, repo, sink, "flow@example.com", testPassword)
	require.NotNil(t, user)

	auther := auth.NewAuthenticator(repo, testConfig()).
		WithLogger(testLogger{}).
		WithActivitySink(sink)

	// Registered users can log in right away.
	login, err := auther.Login(ctx, "flow@example.com", testPassword, auth.ClientInfo{Device: "cli"})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleUser}, login.Roles)
	assert.Equal(t, []string{"posts:read"}, login.Permissions)

	// Username works as a login identifier too.
	again, err := auther.Login(ctx, "flow", testPassword, auth.ClientInfo{})
	require.NoError(t, err)
	require.NotNil(t, again)

	// Refresh rotates: new secret out, old secret dead.
	refreshed, err := auther.Refresh(ctx, login.AccessToken, login.RefreshToken, auth.ClientInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = auther.Refresh(ctx, login.AccessToken, login.RefreshToken, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	// The rotated-to secret still works.
	final, err := auther.Refresh(ctx, refreshed.AccessToken, refreshed.RefreshToken, auth.ClientInfo{})
	require.NoError(t, err)
	require.NotNil(t, final)

	// The audit trail kept up: registration, logins, refreshes, and the
	// rejected replay all landed as rows.
	count, err := db.NewSelect().Model((*auth.SecurityEvent)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 6)

	failures, err := db.NewSelect().
		Model((*auth.SecurityEvent)(nil)).
		Where("success = ?", false).
		Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, failures, 1)
}

func TestLifecycleLogoutAndRevoke(t *testing.T) {
	db, repo := setupStore(t)
	seedDefaultRole(t, db)

	ctx := context.Background()
	user := registerTestUser(t, repo, nil, "logout@example.com", testPassword)

	auther := auth.NewAuthenticator(repo, testConfig()).WithLogger(testLogger{})

	first, err := auther.Login(ctx, "logout@example.com", testPassword, auth.ClientInfo{Device: "laptop"})
	require.NoError(t, err)
	second, err := auther.Login(ctx, "logout@example.com", testPassword, auth.ClientInfo{Device: "phone"})
	require.NoError(t, err)

	// Revoking one session leaves the other alone.
	require.NoError(t, auther.RevokeToken(ctx, first.RefreshToken, auth.ClientInfo{}))

	_, err = auther.Refresh(ctx, first.AccessToken, first.RefreshToken, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	refreshed, err := auther.Refresh(ctx, second.AccessToken, second.RefreshToken, auth.ClientInfo{})
	require.NoError(t, err)

	// Logout kills everything.
	require.NoError(t, auther.Logout(ctx, user.ID, auth.ClientInfo{}))

	_, err = auther.Refresh(ctx, refreshed.AccessToken, refreshed.RefreshToken, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	// Revoking an already dead secret reports not found.
	err = auther.RevokeToken(ctx, second.RefreshToken, auth.ClientInfo{})
	assert.True(t, auth.IsNotFound(err))
}

func TestLifecyclePasswordReset(t *testing.T) {
	db, repo := setupStore(t)
	seedDefaultRole(t, db)

	ctx := context.Background()
	registerTestUser(t, repo, nil, "reset@example.com", testPassword)

	auther := auth.NewAuthenticator(repo, testConfig()).WithLogger(testLogger{})

	login, err := auther.Login(ctx, "reset@example.com", testPassword, auth.ClientInfo{})
	require.NoError(t, err)

	var initResp *auth.InitializePasswordResetResponse
	initHandler := auth.NewInitializePasswordResetHandler(repo, testConfig()).WithLogger(testLogger{})
	err = initHandler.Execute(ctx, auth.InitializePasswordResetMessage{
		Email: "reset@example.com",
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			initResp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, initResp)
	require.NotEmpty(t, initResp.Secret)

	// A second request supersedes the first.
	var secondResp *auth.InitializePasswordResetResponse
	err = initHandler.Execute(ctx, auth.InitializePasswordResetMessage{
		Email: "reset@example.com",
		OnResponse: func(r *auth.InitializePasswordResetResponse) {
			secondResp = r
		},
	})
	require.NoError(t, err)

	finalizeHandler := auth.NewFinalizePasswordResetHandler(repo).WithLogger(testLogger{})

	// The superseded secret is dead.
	err = finalizeHandler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Secret:   initResp.Secret,
		Password: "password after reset",
	})
	require.Error(t, err)
	assert.True(t, auth.IsInvalidOrExpired(err))

	// The live secret redeems exactly once.
	err = finalizeHandler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Secret:   secondResp.Secret,
		Password: "password after reset",
	})
	require.NoError(t, err)

	err = finalizeHandler.Execute(ctx, auth.FinalizePasswordResetMessage{
		Secret:   secondResp.Secret,
		Password: "yet another password",
	})
	require.Error(t, err)

	// Old password is out, new one is in, sessions from before are gone.
	_, err = auther.Login(ctx, "reset@example.com", testPassword, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = auther.Refresh(ctx, login.AccessToken, login.RefreshToken, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	fresh, err := auther.Login(ctx, "reset@example.com", "password after reset", auth.ClientInfo{})
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestLifecyclePasswordChange(t *testing.T) {
	db, repo := setupStore(t)
	seedDefaultRole(t, db)

	ctx := context.Background()
	user := registerTestUser(t, repo, nil, "change@example.com", testPassword)

	auther := auth.NewAuthenticator(repo, testConfig()).WithLogger(testLogger{})

	login, err := auther.Login(ctx, "change@example.com", testPassword, auth.ClientInfo{})
	require.NoError(t, err)

	handler := auth.NewChangePasswordHandler(repo).WithLogger(testLogger{})

	// Wrong current password changes nothing.
	err = handler.Execute(ctx, auth.ChangePasswordMessage{
		UserID:          user.ID,
		CurrentPassword: "not the password",
		NewPassword:     "changed password",
	})
	require.Error(t, err)
	assert.True(t, auth.IsUnauthenticated(err))

	err = handler.Execute(ctx, auth.ChangePasswordMessage{
		UserID:          user.ID,
		CurrentPassword: testPassword,
		NewPassword:     "changed password",
	})
	require.NoError(t, err)

	// The change revoked the pre-existing session.
	_, err = auther.Refresh(ctx, login.AccessToken, login.RefreshToken, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	_, err = auther.Login(ctx, "change@example.com", testPassword, auth.ClientInfo{})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	result, err := auther.Login(ctx, "change@example.com", "changed password", auth.ClientInfo{})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestRegisterDuplicateAgainstStore(t *testing.T) {
	db, repo := setupStore(t)
	seedDefaultRole(t, db)

	registerTestUser(t, repo, nil, "dup@example.com", testPassword)

	handler := auth.NewRegisterUserHandler(repo, testConfig()).WithLogger(testLogger{})
	err := handler.Execute(context.Background(), auth.RegisterUserMessage{
		Email:    "dup@example.com",
		Password: "a different password",
	})
	require.Error(t, err)
	assert.True(t, auth.IsConflict(err))
}

func TestLoginAttemptTrackingAgainstStore(t *testing.T) {
	db, repo := setupStore(t)
	seedDefaultRole(t, db)

	ctx := context.Background()
	user := registerTestUser(t, repo, nil, "attempts@example.com", testPassword)

	auther := auth.NewAuthenticator(repo, testConfig()).WithLogger(testLogger{})

	for i := 0; i < 2; i++ {
		_, err := auther.Login(ctx, "attempts@example.com", "wrong password", auth.ClientInfo{})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	stored, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LoginAttempts)
	assert.NotNil(t, stored.LoginAttemptAt)

	// A successful login clears the counters.
	_, err = auther.Login(ctx, "attempts@example.com", testPassword, auth.ClientInfo{})
	require.NoError(t, err)

	stored, err = repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LoginAttemptAt)
	assert.NotNil(t, stored.LoggedInAt)
}
