package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/service"
)

type AvatarHandler struct {
	avatars *service.AvatarService
	logger  *slog.Logger
}

func NewAvatarHandler(avatars *service.AvatarService, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, logger: logger}
}

// HandleAvatar serves the letter avatar of a user.
//
// HTTP: GET /avatar/{username}
// Responses: 200 image/png, 404 for unknown users
func (h *AvatarHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	img, err := h.avatars.Avatar(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		h.logger.Error("rendering avatar", slog.String("error", err.Error()))
		http.Error(w, "Failed to render avatar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(img)
}
