// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, not *sqlite.DB, so tests can hand
// them in-memory fakes. They return apperror kinds and never HTTP status
// codes; the handler translates.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/metrics"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/repository"
)

// MsgNoKeywords is shown for a search without a query.
const MsgNoKeywords = "No keywords provided"

// LikeSet is the per-session record of liked posts. *auth.Session
// implements it.
type LikeSet interface {
	HasLiked(postID int64) bool
	MarkLiked(postID int64)
	MarkUnliked(postID int64)
}

// SearchResult is what the search page renders.
type SearchResult struct {
	Posts   []model.Post
	Message string
}

// PostService handles business logic for posts.
type PostService struct {
	repo   repository.PostRepository
	logger *slog.Logger
}

func NewPostService(repo repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{
		repo:   repo,
		logger: logger,
	}
}

// Create publishes a post by author with zero likes.
func (s *PostService) Create(ctx context.Context, title, content, author string) (*model.Post, error) {
	if author == "" {
		return nil, apperror.Unauthenticated(MsgNotLoggedIn)
	}

	post, err := model.NewPost(title, content, author)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	metrics.PostsCreatedTotal.Inc()
	s.logger.Info("post created",
		slog.Int64("id", post.ID),
		slog.String("username", author),
	)
	return post, nil
}

// List returns every post in the requested order.
func (s *PostService) List(ctx context.Context, sort model.SortKey) ([]model.Post, error) {
	posts, err := s.repo.List(ctx, repository.ListOptions{Sort: sort})
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return posts, nil
}

// ListByUser returns the posts of username, newest first.
func (s *PostService) ListByUser(ctx context.Context, username string) ([]model.Post, error) {
	posts, err := s.repo.ListByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts of %q: %w", username, err)
	}
	return posts, nil
}

// Delete removes a post on behalf of requester, who must be its author.
func (s *PostService) Delete(ctx context.Context, id int64, requester string) error {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service/post: loading post %d: %w", id, err)
	}

	if post.Username != requester {
		s.logger.Warn("refused to delete another user's post",
			slog.Int64("id", id),
			slog.String("requester", requester),
		)
		return apperror.Forbidden("You do not have permission to delete this post")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service/post: deleting post %d: %w", id, err)
	}

	metrics.PostsDeletedTotal.WithLabelValues("author").Inc()
	s.logger.Info("post deleted", slog.Int64("id", id), slog.String("username", requester))
	return nil
}

// ToggleLike likes the post if the session hasn't yet, unlikes it if it
// has, and returns the new like count.
//
// The counter moves in one SQL statement, so concurrent toggles from
// different sessions don't lose updates. The liked set is per session:
// logging in elsewhere starts from an empty set.
func (s *PostService) ToggleLike(ctx context.Context, id int64, likes LikeSet) (int64, error) {
	delta := int64(1)
	action := "like"
	if likes.HasLiked(id) {
		delta = -1
		action = "unlike"
	}

	count, err := s.repo.AddLikes(ctx, id, delta)
	if err != nil {
		return 0, fmt.Errorf("service/post: toggling like on post %d: %w", id, err)
	}

	if delta > 0 {
		likes.MarkLiked(id)
	} else {
		likes.MarkUnliked(id)
	}

	metrics.LikesToggledTotal.WithLabelValues(action).Inc()
	return count, nil
}

// Search finds posts whose content or author contains query, ignoring
// case. A blank query matches nothing.
func (s *PostService) Search(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &SearchResult{Posts: []model.Post{}, Message: MsgNoKeywords}, nil
	}

	posts, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("service/post: searching %q: %w", query, err)
	}
	return &SearchResult{Posts: posts}, nil
}
