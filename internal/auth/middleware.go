package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A package-private type means
// no other package can read or shadow the session stored here.
type contextKey string

const sessionKey contextKey = "session"

// LoadSession resolves the request's session from store and puts it on the
// context. It never blocks a request: a broken or missing cookie simply
// gives the handler an anonymous session.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func LoadSession(store sessions.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := store.Get(r, SessionName)
			if err != nil {
				logger.Warn("loading session failed", slog.String("error", err.Error()))
			}
			if raw == nil {
				raw = sessions.NewSession(store, SessionName)
				raw.Options = &sessions.Options{Path: "/", HttpOnly: true}
				raw.IsNew = true
			}

			ctx := WithSession(r.Context(), NewSession(raw))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by LoadSession.
//
// Usage in handlers:
//
//	sess, ok := auth.SessionFromContext(r.Context())
//	if !ok {
//	    // LoadSession isn't mounted on this route
//	}
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// RequireAuth sends anonymous visitors of page routes to /login.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthJSON answers 403 for anonymous calls to the fetch-driven
// endpoints (like, delete post, delete account), where a redirect would be
// followed silently by the browser and look like success.
func RequireAuthJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"forbidden","message":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthenticated(r *http.Request) bool {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		return false
	}
	_, ok = s.UserID()
	return ok
}
