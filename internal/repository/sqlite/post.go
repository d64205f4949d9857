package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/repository"
)

// compile-time check that *PostDB implements repository.PostRepository
var _ repository.PostRepository = (*PostDB)(nil)

var postColumns = []string{"id", "title", "content", "username", "timestamp", "likes"}

// likeEscaper escapes the LIKE wildcards in user input so a search for
// "50%" matches the literal text.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostDB stores rows of the posts table.
type PostDB struct {
	db *DB
}

// Create inserts post and fills in its ID.
func (p *PostDB) Create(ctx context.Context, post *model.Post) error {
	query, args, err := p.db.sb.
		Insert("posts").
		Columns("title", "content", "username", "timestamp", "likes").
		Values(post.Title, post.Content, post.Username, post.Timestamp, post.Likes).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: building post insert: %w", err)
	}

	res, err := p.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new post id: %w", err)
	}
	post.ID = id

	return nil
}

// GetByID retrieves a single post.
// Returns apperror.ErrNotFound if the post doesn't exist.
func (p *PostDB) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	query, args, err := p.selectPosts().Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building post query: %w", err)
	}

	var post model.Post
	if err := p.db.conn.GetContext(ctx, &post, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}

	return &post, nil
}

// List returns every post, newest first or most liked first. Equal keys
// keep insertion order.
func (p *PostDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	q := p.selectPosts()
	switch opts.Sort {
	case model.SortByLikes:
		q = q.OrderBy("likes DESC", "id ASC")
	default:
		q = q.OrderBy("timestamp DESC", "id ASC")
	}
	return p.query(ctx, q, "listing posts")
}

// ListByUsername returns the posts written by username, newest first.
func (p *PostDB) ListByUsername(ctx context.Context, username string) ([]model.Post, error) {
	q := p.selectPosts().Where(sq.Eq{"username": username}).OrderBy("timestamp DESC", "id ASC")
	return p.query(ctx, q, "listing posts by user")
}

// Search matches query as a substring of the content or the author's
// username. SQLite's LIKE is case-insensitive for ASCII.
func (p *PostDB) Search(ctx context.Context, query string) ([]model.Post, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	q := p.selectPosts().
		Where(sq.Or{
			sq.Expr(`content LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`username LIKE ? ESCAPE '\'`, pattern),
		}).
		OrderBy("timestamp DESC", "id ASC")
	return p.query(ctx, q, "searching posts")
}

// Delete removes a post by ID.
// Returns apperror.ErrNotFound if the post doesn't exist.
func (p *PostDB) Delete(ctx context.Context, id int64) error {
	query, args, err := p.db.sb.Delete("posts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: building post delete: %w", err)
	}

	res, err := p.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking deleted post %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}

	return nil
}

func (p *PostDB) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	query, args, err := p.db.sb.Delete("posts").Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: building post delete: %w", err)
	}

	res, err := p.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting posts of %q: %w", username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting deleted posts of %q: %w", username, err)
	}

	return n, nil
}

// AddLikes applies delta in a single statement, so concurrent toggles on
// the same post can't lose updates. The counter is clamped at zero.
func (p *PostDB) AddLikes(ctx context.Context, id, delta int64) (int64, error) {
	query, args, err := p.db.sb.
		Update("posts").
		Set("likes", sq.Expr("MAX(likes + ?, 0)", delta)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING likes").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: building like update: %w", err)
	}

	var likes int64
	if err := p.db.conn.QueryRowxContext(ctx, query, args...).Scan(&likes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return 0, fmt.Errorf("sqlite: updating likes of post %d: %w", id, err)
	}

	return likes, nil
}

func (p *PostDB) selectPosts() sq.SelectBuilder {
	return p.db.sb.Select(postColumns...).From("posts")
}

func (p *PostDB) query(ctx context.Context, q sq.SelectBuilder, action string) ([]model.Post, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building query for %s: %w", action, err)
	}

	// Start from an empty slice so callers encode [] rather than null.
	posts := []model.Post{}
	if err := p.db.conn.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", action, err)
	}

	return posts, nil
}
