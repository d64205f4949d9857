package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/service"
	"github.com/sakif/ecosphere/internal/view"
)

// PostHandler serves the feed, the profile, search, and the post actions.
type PostHandler struct {
	posts  *service.PostService
	auth   *service.AuthService
	pages  *Pages
	forms  *formValidator
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, authSvc *service.AuthService, pages *Pages, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:  posts,
		auth:   authSvc,
		pages:  pages,
		forms:  newFormValidator(),
		logger: logger,
	}
}

// HandleHome renders the feed.
//
// HTTP: GET /?sort=likes|recency&error=...
func (h *PostHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	sort := model.ParseSortKey(r.URL.Query().Get("sort"))

	posts, err := h.posts.List(r.Context(), sort)
	if err != nil {
		h.logger.Error("listing posts", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Failed to load posts")
		return
	}

	data := h.pages.base(r)
	data.Posts = posts
	data.Sort = string(sort)
	data.Error = r.URL.Query().Get("error")
	h.pages.render(w, http.StatusOK, view.PageHome, data)
}

// HandleCreate publishes a post as the logged-in user.
//
// HTTP: POST /posts (form: title, content)
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), sess)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthenticated) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		h.logger.Error("creating post: resolving user", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Failed to create post")
		return
	}

	form := postForm{Title: r.PostFormValue("title"), Content: r.PostFormValue("content")}
	if err := h.forms.validate(form); err != nil {
		redirectWithError(w, r, "/", apperror.Message(err, service.MsgInvalidData))
		return
	}

	if _, err := h.posts.Create(r.Context(), form.Title, form.Content, user.Username); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			redirectWithError(w, r, "/", apperror.Message(err, service.MsgInvalidData))
			return
		}
		h.logger.Error("creating post", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Failed to create post")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// LikeResponse is the body of POST /like/{id}.
type LikeResponse struct {
	Likes int64 `json:"likes"`
}

// HandleLike toggles the session's like on a post.
//
// HTTP: POST /like/{id}
// Responses: 200 {"likes": n}, 403, 404
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	id, err := postID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.auth.CurrentUser(r.Context(), sess); err != nil {
		writeError(w, h.logger, err)
		return
	}

	likes, err := h.posts.ToggleLike(r.Context(), id, sess)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := sess.Save(r, w); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LikeResponse{Likes: likes})
}

// HandleDelete deletes a post owned by the logged-in user.
//
// HTTP: POST /delete/{id}
// Responses: 200, 403 (not the author), 404
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	id, err := postID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), sess)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.posts.Delete(r.Context(), id, user.Username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
}

// HandleProfile shows the logged-in user's posts.
//
// HTTP: GET /profile
func (h *PostHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	data := h.pages.base(r)
	if data.User == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	posts, err := h.posts.ListByUser(r.Context(), data.User.Username)
	if err != nil {
		h.logger.Error("loading profile", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	data.Title = data.User.Username
	data.Posts = posts
	h.pages.render(w, http.StatusOK, view.PageProfile, data)
}

// HandleSearch matches posts by content or author.
//
// HTTP: GET /search?q=...
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	result, err := h.posts.Search(r.Context(), q)
	if err != nil {
		h.logger.Error("searching posts", slog.String("error", err.Error()))
		h.pages.renderError(w, r, http.StatusInternalServerError, "Failed to process search query")
		return
	}

	data := h.pages.base(r)
	data.Title = "Search"
	data.Query = q
	data.Posts = result.Posts
	data.Message = result.Message
	h.pages.render(w, http.StatusOK, view.PageSearch, data)
}

// postID parses the {id} path parameter.
func postID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "invalid post id: "+raw)
	}
	return id, nil
}
