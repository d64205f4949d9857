// Package handler contains the HTTP handlers of the EcoSphere server.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, form fields)
//  2. Call the service layer
//  3. Write the response: a rendered page, a redirect, or JSON
//
// Handlers hold no business rules. The session comes from the context
// (auth.LoadSession), is mutated by the services, and saved here before
// the response is written.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/service"
	"github.com/sakif/ecosphere/internal/view"
)

// Site-wide page values.
const (
	AppName     = "EcoSphere"
	PostNeoType = "Post"
)

// Pages renders templates with the values every page needs: app name,
// login state, the current user and the posts they liked.
type Pages struct {
	views  *view.Renderer
	auth   *service.AuthService
	year   int
	logger *slog.Logger
}

func NewPages(views *view.Renderer, authSvc *service.AuthService, copyrightYear int, logger *slog.Logger) *Pages {
	return &Pages{
		views:  views,
		auth:   authSvc,
		year:   copyrightYear,
		logger: logger,
	}
}

// base builds the page data shared by every template.
func (p *Pages) base(r *http.Request) view.Page {
	page := view.Page{
		AppName:       AppName,
		CopyrightYear: p.year,
		PostNeoType:   PostNeoType,
		GoogleEnabled: p.auth.ExternalLoginEnabled(),
	}

	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return page
	}

	user, err := p.auth.CurrentUser(r.Context(), sess)
	if err != nil {
		if !errors.Is(err, apperror.ErrUnauthenticated) {
			p.logger.Error("resolving current user", slog.String("error", err.Error()))
		}
		return page
	}

	page.LoggedIn = true
	page.UserID = user.ID
	page.Username = user.Username
	page.User = user
	page.LikedPosts = sess.LikedPosts()
	return page
}

// render writes a page with status. A template failure becomes a plain 500.
func (p *Pages) render(w http.ResponseWriter, status int, name string, data view.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.views.Render(w, name, data); err != nil {
		p.logger.Error("rendering page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
	}
}

// renderError shows the error page with message.
func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := p.base(r)
	data.Title = "Error"
	data.Error = message
	p.render(w, status, view.PageError, data)
}

// HandleError renders the generic error page.
//
// HTTP: GET /error
func (p *Pages) HandleError(w http.ResponseWriter, r *http.Request) {
	p.renderError(w, r, http.StatusOK, r.URL.Query().Get("error"))
}

// sessionFrom returns the request session. LoadSession is mounted on every
// route, so a missing session is a wiring bug and answers 500.
func sessionFrom(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
	}
	return sess, ok
}
