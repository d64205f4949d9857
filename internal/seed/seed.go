// Package seed fills an empty database with demo users and posts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/repository"
)

// Hasher derives the stored identity of a username-only account.
// *auth.IdentityHasher implements it.
type Hasher interface {
	HashLocal(username string) string
}

type demoUser struct {
	username    string
	memberSince string
}

type demoPost struct {
	title, content, username string
	timestamp                string
	likes                    int64
}

const timeLayout = time.DateTime

var demoUsers = []demoUser{
	{"alice", "2024-01-01 12:00:00"},
	{"bob", "2024-01-02 12:00:00"},
	{"charlie", "2024-01-03 12:00:00"},
	{"dave", "2024-01-04 12:00:00"},
	{"eve", "2024-01-05 12:00:00"},
}

var demoPosts = []demoPost{
	{"Exploring the Mountains", "Today I went hiking in the mountains and it was breathtaking!", "alice", "2024-01-01 13:00:00", 5},
	{"My First Blog Post", "Hello world! This is my first blog post. Excited to start this journey.", "bob", "2024-01-02 14:00:00", 3},
	{"Tech Trends 2024", "Here are the top tech trends to watch out for in 2024...", "charlie", "2024-01-03 15:00:00", 10},
	{"Delicious Recipes", "Tried out some new recipes today and they turned out amazing!", "dave", "2024-01-04 16:00:00", 7},
	{"Travel Diaries", "Just got back from my trip to Japan. It was an incredible experience!", "eve", "2024-01-05 17:00:00", 8},
	{"Learning JavaScript", "JavaScript is such a versatile language. Here are some tips for beginners...", "alice", "2024-01-06 18:00:00", 6},
	{"Fitness Journey", "Started my fitness journey today. Feeling motivated and excited!", "bob", "2024-01-07 19:00:00", 4},
	{"Gardening Tips", "Here are some gardening tips for beginners. Happy gardening!", "charlie", "2024-01-08 20:00:00", 2},
	{"Book Review: The Great Gatsby", "Just finished reading The Great Gatsby. Here are my thoughts...", "dave", "2024-01-09 21:00:00", 9},
	{"Photography 101", "Getting started with photography can be overwhelming. Here are some tips...", "eve", "2024-01-10 22:00:00", 3},
}

// Result counts what Run inserted.
type Result struct {
	Users int
	Posts int
}

// Run inserts the demo data. It is safe to run repeatedly: users that
// already exist are skipped, and posts are only added to an empty table.
//
// Demo users are username-only accounts, so they can log in through
// POST /login.
func Run(ctx context.Context, users repository.UserRepository, posts repository.PostRepository, hasher Hasher, logger *slog.Logger) (Result, error) {
	var res Result

	for _, du := range demoUsers {
		_, err := users.GetByUsername(ctx, du.username)
		if err == nil {
			logger.Debug("seed: user exists", slog.String("username", du.username))
			continue
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return res, fmt.Errorf("seed: looking up %q: %w", du.username, err)
		}

		user, err := model.NewUser(du.username, hasher.HashLocal(du.username))
		if err != nil {
			return res, fmt.Errorf("seed: building user %q: %w", du.username, err)
		}
		if user.MemberSince, err = time.Parse(timeLayout, du.memberSince); err != nil {
			return res, fmt.Errorf("seed: parsing memberSince of %q: %w", du.username, err)
		}
		if err := users.Create(ctx, user); err != nil {
			return res, fmt.Errorf("seed: creating user %q: %w", du.username, err)
		}
		res.Users++
	}

	existing, err := posts.List(ctx, repository.ListOptions{})
	if err != nil {
		return res, fmt.Errorf("seed: counting posts: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("seed: posts table not empty, skipping posts", slog.Int("posts", len(existing)))
		return res, nil
	}

	for _, dp := range demoPosts {
		post, err := model.NewPost(dp.title, dp.content, dp.username)
		if err != nil {
			return res, fmt.Errorf("seed: building post %q: %w", dp.title, err)
		}
		if post.Timestamp, err = time.Parse(timeLayout, dp.timestamp); err != nil {
			return res, fmt.Errorf("seed: parsing timestamp of %q: %w", dp.title, err)
		}
		post.Likes = dp.likes
		if err := posts.Create(ctx, post); err != nil {
			return res, fmt.Errorf("seed: creating post %q: %w", dp.title, err)
		}
		res.Posts++
	}

	return res, nil
}
