package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/ecosphere/internal/avatar"
	"github.com/sakif/ecosphere/internal/metrics"
	"github.com/sakif/ecosphere/internal/repository"
)

// AvatarService serves letter avatars for existing users.
//
// Avatars depend only on the first letter, so rendered images are cached
// per letter for the life of the process.
type AvatarService struct {
	users  repository.UserRepository
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[rune][]byte
}

func NewAvatarService(users repository.UserRepository, logger *slog.Logger) *AvatarService {
	return &AvatarService{
		users:  users,
		logger: logger,
		cache:  make(map[rune][]byte),
	}
}

// Avatar returns the PNG avatar of username. Unknown users yield
// apperror.ErrNotFound.
func (s *AvatarService) Avatar(ctx context.Context, username string) ([]byte, error) {
	if _, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("service/avatar: %w", err)
	}

	letter := avatar.LetterFor(username)

	s.mu.RLock()
	img, ok := s.cache[letter]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := avatar.Render(letter, avatar.Options{})
	if err != nil {
		return nil, fmt.Errorf("service/avatar: rendering %q: %w", letter, err)
	}
	metrics.AvatarsRenderedTotal.Inc()

	s.mu.Lock()
	s.cache[letter] = img
	s.mu.Unlock()

	return img, nil
}
