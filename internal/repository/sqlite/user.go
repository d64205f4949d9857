package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakif/ecosphere/internal/apperror"
	"github.com/sakif/ecosphere/internal/model"
	"github.com/sakif/ecosphere/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

var userColumns = []string{"id", "username", "hashedGoogleId", "avatar_url", "memberSince"}

// UserDB stores rows of the users table.
type UserDB struct {
	db *DB
}

// Create inserts user and fills in its ID.
// A taken username or external identity returns apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	query, args, err := u.db.sb.
		Insert("users").
		Columns("username", "hashedGoogleId", "avatar_url", "memberSince").
		Values(user.Username, user.ExternalID, user.AvatarURL, user.MemberSince).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: building user insert: %w", err)
	}

	res, err := u.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", "user already exists")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by primary key.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return u.getBy(ctx, sq.Eq{"id": id}, strconv.FormatInt(id, 10))
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getBy(ctx, sq.Eq{"username": username}, username)
}

func (u *UserDB) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return u.getBy(ctx, sq.Eq{"hashedGoogleId": externalID}, "external identity")
}

// Delete removes the user row. Posts are not touched; callers cascade.
func (u *UserDB) Delete(ctx context.Context, id int64) error {
	query, args, err := u.db.sb.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: building user delete: %w", err)
	}

	res, err := u.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking deleted user %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}

	return nil
}

func (u *UserDB) getBy(ctx context.Context, where sq.Eq, key string) (*model.User, error) {
	query, args, err := u.db.sb.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building user query: %w", err)
	}

	var user model.User
	if err := u.db.conn.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}

	return &user, nil
}
