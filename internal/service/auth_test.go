package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/model"
)

type authFixture struct {
	users    *fakeUserRepo
	posts    *fakePostRepo
	provider *fakeProvider
	svc      *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users: newFakeUserRepo(),
		posts: newFakePostRepo(),
		provider: &fakeProvider{
			identity: &auth.ExternalIdentity{ID: "g-123", Name: "Alice Doe", Email: "alice@example.com"},
		},
	}
	f.svc = NewAuthService(f.users, f.posts, f.provider, prefixHasher{}, discardLogger())
	return f
}

// seedUser stores a user directly in the fake repository.
func (f *authFixture) seedUser(t *testing.T, username, externalID string) *model.User {
	t.Helper()
	u, err := model.NewUser(username, externalID)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// =========================================================================
// EXTERNAL LOGIN
// =========================================================================

func TestBeginExternalLogin(t *testing.T) {
	f := newAuthFixture()

	url, err := f.svc.BeginExternalLogin("state-1")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state-1")
	assert.True(t, f.svc.ExternalLoginEnabled())
}

func TestBeginExternalLogin_Disabled(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo(), newFakePostRepo(), nil, prefixHasher{}, discardLogger())

	_, err := svc.BeginExternalLogin("s")
	assert.ErrorIs(t, err, ErrExternalLoginDisabled)
	assert.False(t, svc.ExternalLoginEnabled())

	_, err = svc.CompleteExternalLogin(context.Background(), "code", &fakeSession{})
	assert.ErrorIs(t, err, ErrExternalLoginDisabled)
}

func TestCompleteExternalLogin_KnownIdentity(t *testing.T) {
	f := newAuthFixture()
	alice := f.seedUser(t, "alice", "h:g-123")
	sess := &fakeSession{}

	outcome, err := f.svc.CompleteExternalLogin(context.Background(), "code", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthenticated, outcome)

	id, ok := sess.UserID()
	assert.True(t, ok)
	assert.Equal(t, alice.ID, id)
}

func TestCompleteExternalLogin_NewIdentityPendsRegistration(t *testing.T) {
	f := newAuthFixture()
	sess := &fakeSession{}

	outcome, err := f.svc.CompleteExternalLogin(context.Background(), "code", sess)
	require.NoError(t, err)
	assert.Equal(t, OutcomePendingRegistration, outcome)

	_, ok := sess.UserID()
	assert.False(t, ok)
	externalID, name, pending := sess.PendingRegistration()
	assert.True(t, pending)
	assert.Equal(t, "h:g-123", externalID, "only the hashed identity reaches the session")
	assert.Equal(t, "Alice Doe", name)
}

func TestCompleteExternalLogin_ExchangeFails(t *testing.T) {
	f := newAuthFixture()
	f.provider.err = errors.New("invalid_grant")
	sess := &fakeSession{}

	_, err := f.svc.CompleteExternalLogin(context.Background(), "bad", sess)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrValidation), "upstream failures are not validation errors")
	_, _, pending := sess.PendingRegistration()
	assert.False(t, pending)
}

func TestCompleteExternalLogin_LookupFails(t *testing.T) {
	f := newAuthFixture()
	f.users.getErr = errDatabaseDown

	_, err := f.svc.CompleteExternalLogin(context.Background(), "code", &fakeSession{})
	assert.ErrorIs(t, err, errDatabaseDown)
}

// =========================================================================
// USERNAME REGISTRATION
// =========================================================================

func TestCompleteUsernameRegistration(t *testing.T) {
	f := newAuthFixture()
	sess := &fakeSession{}
	sess.BeginRegistration("h:g-123", "Alice Doe")

	user, err := f.svc.CompleteUsernameRegistration(context.Background(), "  alice ", sess)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "h:g-123", user.ExternalID)

	id, ok := sess.UserID()
	assert.True(t, ok)
	assert.Equal(t, user.ID, id)
	_, _, pending := sess.PendingRegistration()
	assert.False(t, pending, "pending identity is cleared")

	// The same Google account now logs straight in.
	next := &fakeSession{}
	outcome, err := f.svc.CompleteExternalLogin(context.Background(), "code", next)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthenticated, outcome)
}

func TestCompleteUsernameRegistration_InvalidData(t *testing.T) {
	f := newAuthFixture()

	tests := []struct {
		name     string
		pending  bool
		username string
	}{
		{name: "no pending identity", pending: false, username: "alice"},
		{name: "empty username", pending: true, username: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{}
			if tt.pending {
				sess.BeginRegistration("h:g-1", "x")
			}

			_, err := f.svc.CompleteUsernameRegistration(context.Background(), tt.username, sess)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, MsgInvalidData, apperror.Message(err, ""))
			assert.Empty(t, f.users.users)
		})
	}
}

func TestCompleteUsernameRegistration_UsernameTaken(t *testing.T) {
	f := newAuthFixture()
	f.seedUser(t, "alice", "h:other")
	sess := &fakeSession{}
	sess.BeginRegistration("h:g-123", "Alice Doe")

	_, err := f.svc.CompleteUsernameRegistration(context.Background(), "alice", sess)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, MsgUsernameTaken, apperror.Message(err, ""))

	_, _, pending := sess.PendingRegistration()
	assert.True(t, pending, "user can retry with another name")
}

// =========================================================================
// DIRECT LOGIN / REGISTER
// =========================================================================

func TestDirectLogin(t *testing.T) {
	f := newAuthFixture()
	bob := f.seedUser(t, "bob", "h:local:bob")
	sess := &fakeSession{}

	user, err := f.svc.DirectLogin(context.Background(), "bob", sess)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, user.ID)

	id, ok := sess.UserID()
	assert.True(t, ok)
	assert.Equal(t, bob.ID, id)
}

func TestDirectLogin_UnknownUsername(t *testing.T) {
	f := newAuthFixture()

	for _, name := range []string{"ghost", ""} {
		sess := &fakeSession{}
		_, err := f.svc.DirectLogin(context.Background(), name, sess)
		assert.Equal(t, MsgUnknownUsername, apperror.Message(err, ""), "username %q", name)
		_, ok := sess.UserID()
		assert.False(t, ok)
	}
}

func TestDirectRegister(t *testing.T) {
	f := newAuthFixture()
	sess := &fakeSession{}

	user, err := f.svc.DirectRegister(context.Background(), "carol", sess)
	require.NoError(t, err)
	assert.Equal(t, "h:local:carol", user.ExternalID)
	assert.WithinDuration(t, time.Now(), user.MemberSince, time.Minute)

	id, ok := sess.UserID()
	assert.True(t, ok)
	assert.Equal(t, user.ID, id)
}

func TestDirectRegister_DuplicateAlwaysFails(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.DirectRegister(context.Background(), "dave", &fakeSession{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.DirectRegister(context.Background(), "dave", &fakeSession{})
		assert.ErrorIs(t, err, apperror.ErrConflict)
		assert.Equal(t, MsgUsernameTaken, apperror.Message(err, ""))
	}
	assert.Len(t, f.users.users, 1)
}

func TestDirectRegister_Empty(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.DirectRegister(context.Background(), " ", &fakeSession{})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// SESSION LIFECYCLE
// =========================================================================

func TestLogout(t *testing.T) {
	f := newAuthFixture()
	sess := &fakeSession{}
	sess.Authenticate(1)

	f.svc.Logout(sess)

	assert.True(t, sess.invalidated)
	_, ok := sess.UserID()
	assert.False(t, ok)
}

func TestCurrentUser(t *testing.T) {
	f := newAuthFixture()
	alice := f.seedUser(t, "alice", "h:a")

	sess := &fakeSession{}
	_, err := f.svc.CurrentUser(context.Background(), sess)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	sess.Authenticate(alice.ID)
	user, err := f.svc.CurrentUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	delete(f.users.users, alice.ID)
	_, err = f.svc.CurrentUser(context.Background(), sess)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated, "deleted user counts as logged out")
}

// =========================================================================
// ACCOUNT DELETION
// =========================================================================

func TestDeleteAccount_CascadesToPosts(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	alice := f.seedUser(t, "alice", "h:a")
	f.seedUser(t, "bob", "h:b")

	posts := NewPostService(f.posts, discardLogger())
	_, err := posts.Create(ctx, "one", "first", "alice")
	require.NoError(t, err)
	_, err = posts.Create(ctx, "two", "second", "alice")
	require.NoError(t, err)
	_, err = posts.Create(ctx, "three", "third", "bob")
	require.NoError(t, err)

	sess := &fakeSession{}
	sess.Authenticate(alice.ID)

	require.NoError(t, f.svc.DeleteAccount(ctx, sess))

	assert.True(t, sess.invalidated)
	_, err = f.users.GetByID(ctx, alice.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	remaining, err := f.posts.List(ctx, repositoryListAll)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	for _, p := range remaining {
		assert.NotEqual(t, "alice", p.Username)
	}
}

func TestDeleteAccount_UserMissing(t *testing.T) {
	f := newAuthFixture()
	sess := &fakeSession{}
	sess.Authenticate(404)

	err := f.svc.DeleteAccount(context.Background(), sess)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.False(t, sess.invalidated)
}

func TestDeleteAccount_Anonymous(t *testing.T) {
	f := newAuthFixture()
	err := f.svc.DeleteAccount(context.Background(), &fakeSession{})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestDeleteAccount_UserDeleteFails(t *testing.T) {
	f := newAuthFixture()
	alice := f.seedUser(t, "alice", "h:a")
	f.users.deleteErr = errDatabaseDown
	sess := &fakeSession{}
	sess.Authenticate(alice.ID)

	err := f.svc.DeleteAccount(context.Background(), sess)
	assert.ErrorIs(t, err, errDatabaseDown)
	assert.False(t, sess.invalidated, "session survives a failed deletion")
}
