package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/metrics"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/repository"
)

// User-facing messages. The login and registration pages show them as is.
const (
	MsgInvalidData     = "Invalid data"
	MsgUsernameTaken   = "Username already exists"
	MsgUnknownUsername = "Username does not exist"
	MsgNotLoggedIn     = "not authenticated"
)

// ErrExternalLoginDisabled is returned when no identity provider is configured.
var ErrExternalLoginDisabled = errors.New("service/auth: external login is not configured")

// IdentityProvider is the OAuth client. *auth.GoogleProvider implements it.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.ExternalIdentity, error)
}

// IdentityHasher maps provider subjects to stored identities.
// *auth.IdentityHasher implements it.
type IdentityHasher interface {
	Hash(subject string) string
	HashLocal(username string) string
}

// SessionState is the part of a session the auth rules read and write.
// *auth.Session implements it.
type SessionState interface {
	UserID() (int64, bool)
	Authenticate(userID int64)
	BeginRegistration(externalID, name string)
	PendingRegistration() (externalID, name string, ok bool)
	Invalidate()
}

// LoginOutcome tells the handler where a finished Google login goes next.
type LoginOutcome int

const (
	// OutcomeAuthenticated: the identity belongs to an account, go home.
	OutcomeAuthenticated LoginOutcome = iota + 1
	// OutcomePendingRegistration: new identity, the user must pick a username.
	OutcomePendingRegistration
)

// AuthService sits between the HTTP handlers and the stores:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ IdentityProvider (Google)      ↘ PostRepository (cascade)
//
// The session is passed in as a SessionState, so the service decides what
// the session should hold while the handler alone deals with cookies.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → read/write user records
//   - posts     repository.PostRepository → cascade on account deletion
//   - provider  IdentityProvider          → nil when Google login is off
//   - hasher    IdentityHasher            → turns Google ids into stored ids
//   - logger    *slog.Logger              → structured logging
type AuthService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	provider IdentityProvider
	hasher   IdentityHasher
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. provider may be nil.
func NewAuthService(
	users repository.UserRepository,
	posts repository.PostRepository,
	provider IdentityProvider,
	hasher IdentityHasher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		posts:    posts,
		provider: provider,
		hasher:   hasher,
		logger:   logger,
	}
}

// ExternalLoginEnabled reports whether an identity provider is configured.
func (s *AuthService) ExternalLoginEnabled() bool {
	return s.provider != nil
}

// BeginExternalLogin returns the provider URL to send the browser to.
// It has no side effects; the handler stores state in a cookie.
func (s *AuthService) BeginExternalLogin(state string) (string, error) {
	if s.provider == nil {
		return "", ErrExternalLoginDisabled
	}
	return s.provider.AuthURL(state), nil
}

// CompleteExternalLogin finishes the Google callback.
//
// A known identity logs the session in. An unknown one is parked in the
// session as a pending registration until the user picks a username.
func (s *AuthService) CompleteExternalLogin(ctx context.Context, code string, sess SessionState) (LoginOutcome, error) {
	if s.provider == nil {
		return 0, ErrExternalLoginDisabled
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("google", "failure").Inc()
		return 0, fmt.Errorf("service/auth: completing external login: %w", err)
	}

	externalID := s.hasher.Hash(identity.ID)

	user, err := s.users.GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		sess.Authenticate(user.ID)
		metrics.LoginsTotal.WithLabelValues("google", "success").Inc()
		s.logger.Info("user logged in via Google",
			slog.Int64("userID", user.ID),
			slog.String("username", user.Username),
		)
		return OutcomeAuthenticated, nil

	case errors.Is(err, apperror.ErrNotFound):
		sess.BeginRegistration(externalID, identity.Name)
		metrics.LoginsTotal.WithLabelValues("google", "pending").Inc()
		s.logger.Info("new Google identity, username registration pending")
		return OutcomePendingRegistration, nil

	default:
		return 0, fmt.Errorf("service/auth: looking up external identity: %w", err)
	}
}

// CompleteUsernameRegistration creates the account for a pending Google
// identity and logs the session in.
func (s *AuthService) CompleteUsernameRegistration(ctx context.Context, username string, sess SessionState) (*model.User, error) {
	externalID, _, ok := sess.PendingRegistration()
	username = strings.TrimSpace(username)
	if !ok || username == "" {
		return nil, apperror.ValidationFailed("username", MsgInvalidData)
	}

	user, err := s.register(ctx, username, externalID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("google", "failure").Inc()
		return nil, err
	}

	sess.Authenticate(user.ID)
	metrics.LoginsTotal.WithLabelValues("google", "success").Inc()
	s.logger.Info("user registered via Google",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// DirectLogin logs in by username alone.
func (s *AuthService) DirectLogin(ctx context.Context, username string, sess SessionState) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", MsgUnknownUsername)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("username", "failure").Inc()
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("username", MsgUnknownUsername)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", username, err)
	}

	sess.Authenticate(user.ID)
	metrics.LoginsTotal.WithLabelValues("username", "success").Inc()
	return user, nil
}

// DirectRegister creates an account without an identity provider. The
// account gets a synthetic identity derived from the username.
func (s *AuthService) DirectRegister(ctx context.Context, username string, sess SessionState) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", MsgInvalidData)
	}

	user, err := s.register(ctx, username, s.hasher.HashLocal(username))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("register", "failure").Inc()
		return nil, err
	}

	sess.Authenticate(user.ID)
	metrics.LoginsTotal.WithLabelValues("register", "success").Inc()
	s.logger.Info("user registered", slog.Int64("userID", user.ID), slog.String("username", user.Username))
	return user, nil
}

// register checks the username is free and inserts the user. A unique
// violation on insert (a concurrent registration won the race) reports the
// same message as the pre-check.
func (s *AuthService) register(ctx context.Context, username, externalID string) (*model.User, error) {
	_, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, apperror.Conflict("username", MsgUsernameTaken)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking username %q: %w", username, err)
	}

	user, err := model.NewUser(username, externalID)
	if err != nil {
		return nil, apperror.ValidationFailed("username", MsgInvalidData)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("username", MsgUsernameTaken)
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}
	return user, nil
}

// Logout ends the session. The handler still has to save it.
func (s *AuthService) Logout(sess SessionState) {
	if id, ok := sess.UserID(); ok {
		s.logger.Info("user logged out", slog.Int64("userID", id))
	}
	sess.Invalidate()
}

// CurrentUser resolves the logged-in user. A session whose user has been
// deleted counts as logged out.
func (s *AuthService) CurrentUser(ctx context.Context, sess SessionState) (*model.User, error) {
	id, ok := sess.UserID()
	if !ok {
		return nil, apperror.Unauthenticated(MsgNotLoggedIn)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated(MsgNotLoggedIn)
		}
		return nil, fmt.Errorf("service/auth: loading user %d: %w", id, err)
	}
	return user, nil
}

// DeleteAccount removes every post of the logged-in user, then the user,
// and ends the session.
//
// The two deletes are separate statements. If the user delete fails after
// the posts are gone, the account survives without posts and a retry
// finishes the job.
func (s *AuthService) DeleteAccount(ctx context.Context, sess SessionState) error {
	id, ok := sess.UserID()
	if !ok {
		return apperror.Unauthenticated(MsgNotLoggedIn)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service/auth: loading user %d: %w", id, err)
	}

	n, err := s.posts.DeleteByUsername(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("service/auth: deleting posts of %q: %w", user.Username, err)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("service/auth: deleting user %d: %w", user.ID, err)
	}

	sess.Invalidate()

	metrics.AccountsDeletedTotal.Inc()
	metrics.PostsDeletedTotal.WithLabelValues("account_deleted").Add(float64(n))
	s.logger.Info("account deleted",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.Int64("posts", n),
	)
	return nil
}
