package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-tg-admin/internal/config"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/storage"
)

func newTestAuth(t *testing.T, secret string) (*AuthService, *fakeClock, storage.Store) {
	t.Helper()
	store, err := storage.NewJSONStore("", testLogger())
	require.NoError(t, err)

	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	auth := NewAuthService(store, config.AuthConfig{JWTSecret: secret, SessionTTL: time.Hour}, testLogger())
	auth.SetClock(clock.Now)
	return auth, clock, store
}

func TestEnsureAdmin(t *testing.T) {
	auth, _, store := newTestAuth(t, "secret")
	ctx := context.Background()

	require.NoError(t, auth.EnsureAdmin(ctx, "admin", ""))
	_, err := store.AdminByUsername(ctx, "admin")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, auth.EnsureAdmin(ctx, "admin", "s3cret"))
	admin, err := store.AdminByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", admin.PasswordHash)
	assert.True(t, admin.IsAdmin)

	// A second run keeps the existing account
	require.NoError(t, auth.EnsureAdmin(ctx, "admin", "other"))
	again, err := store.AdminByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, admin.PasswordHash, again.PasswordHash)
}

func TestCreateAdmin_Validation(t *testing.T) {
	auth, _, _ := newTestAuth(t, "secret")
	ctx := context.Background()

	var validationErr *apperrors.ValidationError
	_, err := auth.CreateAdmin(ctx, "a", "password")
	assert.ErrorAs(t, err, &validationErr)
	_, err = auth.CreateAdmin(ctx, "admin", "")
	assert.ErrorAs(t, err, &validationErr)

	_, err = auth.CreateAdmin(ctx, "Admin", "password")
	require.NoError(t, err)
	_, err = auth.CreateAdmin(ctx, "admin", "password")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestLoginAndAuthenticate(t *testing.T) {
	auth, _, _ := newTestAuth(t, "secret")
	ctx := context.Background()
	require.NoError(t, auth.EnsureAdmin(ctx, "admin", "s3cret"))

	_, _, err := auth.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, _, err = auth.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	token, admin, err := auth.Login(ctx, " ADMIN ", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "admin", admin.Username)

	authed, session, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, authed.ID)
	assert.Equal(t, admin.ID, session.UserID)
}

func TestAuthenticate_RejectsForeignAndGarbageTokens(t *testing.T) {
	auth, _, _ := newTestAuth(t, "secret")
	other, _, _ := newTestAuth(t, "another-secret")
	ctx := context.Background()
	require.NoError(t, other.EnsureAdmin(ctx, "admin", "s3cret"))

	token, _, err := other.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)

	_, _, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, _, err = auth.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthenticate_Expired(t *testing.T) {
	auth, clock, _ := newTestAuth(t, "secret")
	ctx := context.Background()
	require.NoError(t, auth.EnsureAdmin(ctx, "admin", "s3cret"))

	token, _, err := auth.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, _, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestLogout_RevokesSession(t *testing.T) {
	auth, _, _ := newTestAuth(t, "secret")
	ctx := context.Background()
	require.NoError(t, auth.EnsureAdmin(ctx, "admin", "s3cret"))

	token, _, err := auth.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, token))
	_, _, err = auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
