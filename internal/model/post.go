package model

import (
	"strings"
	"time"

	"github.com/sakif/ecosphere/internal/apperror"
)

// Post is a short piece of content published by a user.
//
// Username references the author by name rather than by id. The reference
// is checked when the post is published and never again, so account
// deletion has to remove a user's posts explicitly.
type Post struct {
	ID        int64     `json:"id"        db:"id"`
	Title     string    `json:"title"     db:"title"`
	Content   string    `json:"content"   db:"content"`
	Username  string    `json:"username"  db:"username"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Likes     int64     `json:"likes"     db:"likes"`
}

// NewPost builds an unsaved post with zero likes, stamped with the current
// UTC time.
func NewPost(title, content, username string) (*Post, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if username == "" {
		return nil, apperror.ValidationFailed("username", "author is required")
	}

	return &Post{
		Title:     title,
		Content:   content,
		Username:  username,
		Timestamp: time.Now().UTC(),
	}, nil
}

// SortKey selects the ordering of the post feed.
type SortKey string

const (
	SortByRecency SortKey = "recency"
	SortByLikes   SortKey = "likes"
)

// ParseSortKey maps the ?sort= query value to a SortKey. Anything other
// than "likes" sorts by recency.
func ParseSortKey(s string) SortKey {
	if SortKey(strings.ToLower(strings.TrimSpace(s))) == SortByLikes {
		return SortByLikes
	}
	return SortByRecency
}
