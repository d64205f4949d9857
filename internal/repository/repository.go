// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite provides the implementation used in production
// and in repository tests; service tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/ecosphere/internal/model"
)

// ListOptions controls the ordering of a post listing.
type ListOptions struct {
	Sort model.SortKey
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	List(ctx context.Context, opts ListOptions) ([]model.Post, error)
	ListByUsername(ctx context.Context, username string) ([]model.Post, error)
	Search(ctx context.Context, query string) ([]model.Post, error)
	Delete(ctx context.Context, id int64) error
	// DeleteByUsername removes every post owned by username and reports how
	// many rows went away.
	DeleteByUsername(ctx context.Context, username string) (int64, error)
	// AddLikes adjusts the like counter by delta, never below zero, and
	// returns the stored value.
	AddLikes(ctx context.Context, id, delta int64) (int64, error)
}
