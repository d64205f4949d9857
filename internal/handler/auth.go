package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/service"
	"github.com/sakif/ecosphere/internal/view"
)

const stateCookieName = "oauth_state"

// AuthHandler serves login, registration, the Google OAuth flow, logout
// and account deletion.
type AuthHandler struct {
	auth          *service.AuthService
	pages         *Pages
	forms         *formValidator
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(authSvc *service.AuthService, pages *Pages, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          authSvc,
		pages:         pages,
		forms:         newFormValidator(),
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleLoginPage renders the login/register page with an optional login
// error.
//
// HTTP: GET /login?error=...
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.pages.base(r)
	data.Title = "Login"
	data.LoginError = r.URL.Query().Get("error")
	h.pages.render(w, http.StatusOK, view.PageLoginRegister, data)
}

// HandleRegisterPage is the same page with a registration error.
//
// HTTP: GET /register?error=...
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	data := h.pages.base(r)
	data.Title = "Register"
	data.RegError = r.URL.Query().Get("error")
	h.pages.render(w, http.StatusOK, view.PageLoginRegister, data)
}

// HandleLogin logs in by username.
//
// HTTP: POST /login (form: username)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	form := usernameForm{Username: r.PostFormValue("username")}
	if err := h.forms.validate(form); err != nil {
		redirectWithError(w, r, "/login", apperror.Message(err, service.MsgInvalidData))
		return
	}

	if _, err := h.auth.DirectLogin(r.Context(), form.Username, sess); err != nil {
		h.formFailure(w, r, "/login", err)
		return
	}

	h.saveAndRedirect(w, r, sess, "/")
}

// HandleRegister creates an account from a bare username.
//
// HTTP: POST /register (form: username)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	form := usernameForm{Username: r.PostFormValue("username")}
	if err := h.forms.validate(form); err != nil {
		redirectWithError(w, r, "/register", apperror.Message(err, service.MsgInvalidData))
		return
	}

	if _, err := h.auth.DirectRegister(r.Context(), form.Username, sess); err != nil {
		h.formFailure(w, r, "/register", err)
		return
	}

	h.saveAndRedirect(w, r, sess, "/")
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state goes both into a short-lived cookie and into the Google
// URL. HandleGoogleCallback only proceeds when the two match, proving the
// flow started here.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	target, err := h.auth.BeginExternalLogin(state)
	if err != nil {
		h.pages.renderError(w, r, http.StatusNotFound, "Google login is not available")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google login.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the Google profile (service)
//  3. Known account → logged in, go home.
//     New identity → pick a username at /registerUsername.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: missing or mismatched state")
		h.pages.renderError(w, r, http.StatusBadRequest, "Invalid login attempt, please try again")
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		redirectWithError(w, r, "/login", "Google login was cancelled")
		return
	}

	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	outcome, err := h.auth.CompleteExternalLogin(r.Context(), r.URL.Query().Get("code"), sess)
	if err != nil {
		h.logger.Error("auth callback: login failed", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Authentication failed")
		return
	}

	next := "/"
	if outcome == service.OutcomePendingRegistration {
		next = "/registerUsername"
	}
	h.saveAndRedirect(w, r, sess, next)
}

// HandleRegisterUsernamePage asks a new Google user for a username.
//
// HTTP: GET /registerUsername?error=...
func (h *AuthHandler) HandleRegisterUsernamePage(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	_, name, pending := sess.PendingRegistration()
	if !pending {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	data := h.pages.base(r)
	data.Title = "Choose a username"
	data.PendingName = name
	data.Error = r.URL.Query().Get("error")
	h.pages.render(w, http.StatusOK, view.PageRegisterUsername, data)
}

// HandleRegisterUsername creates the account for the pending Google user.
//
// HTTP: POST /registerUsername (form: username)
func (h *AuthHandler) HandleRegisterUsername(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	form := usernameForm{Username: r.PostFormValue("username")}
	if err := h.forms.validate(form); err != nil {
		redirectWithError(w, r, "/registerUsername", apperror.Message(err, service.MsgInvalidData))
		return
	}

	if _, err := h.auth.CompleteUsernameRegistration(r.Context(), form.Username, sess); err != nil {
		h.formFailure(w, r, "/registerUsername", err)
		return
	}

	h.saveAndRedirect(w, r, sess, "/")
}

// HandleLogout ends the session and goes home. A failure to drop the
// session is logged; the user is redirected either way.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	h.auth.Logout(sess)
	if err := sess.Save(r, w); err != nil {
		h.logger.Error("logout: destroying session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleDeleteAccount deletes the user, their posts and the session.
//
// HTTP: DELETE /delete-account
// Responses: 200, 404 (user already gone), 500
func (h *AuthHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	if err := h.auth.DeleteAccount(r.Context(), sess); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "User not found"})
			return
		}
		h.logger.Error("deleting account", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to delete account"})
		return
	}

	if err := sess.Save(r, w); err != nil {
		h.logger.Error("deleting account: destroying session", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to delete account"})
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted successfully"})
}

// formFailure redirects user-facing errors back to the form and shows the
// error page for everything else.
func (h *AuthHandler) formFailure(w http.ResponseWriter, r *http.Request, path string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		redirectWithError(w, r, path, appErr.Message)
		return
	}
	h.logger.Error("form submission failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
	h.pages.renderError(w, r, http.StatusInternalServerError, "Something went wrong, please try again")
}

// saveAndRedirect persists the session before redirecting, so the next
// request sees the new state.
func (h *AuthHandler) saveAndRedirect(w http.ResponseWriter, r *http.Request, sess *auth.Session, path string) {
	if err := sess.Save(r, w); err != nil {
		h.logger.Error("saving session", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Could not save your session")
		return
	}
	http.Redirect(w, r, path, http.StatusFound)
}
