// Package sqlite implements the repository interfaces on top of SQLite.
//
// The driver is modernc.org/sqlite (pure Go, registered as "sqlite").
// Queries are assembled with squirrel and scanned into the db-tagged model
// structs with sqlx.
//
// The pool is limited to one connection. SQLite serialises writers anyway,
// and ":memory:" databases exist per connection, so a single connection
// keeps tests and production on the same code path.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const driverName = "sqlite"

func init() {
	// sqlx only knows "sqlite3" out of the box; modernc registers "sqlite".
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// DB owns the connection pool. Users and Posts hand out the per-table
// repositories that share it.
type DB struct {
	conn *sqlx.DB
	sb   sq.StatementBuilderType
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/microblog.db" → file-based database
//   - ":memory:"          → in-memory database, gone on Close
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserDB {
	return &UserDB{db: db}
}

// Posts returns the post repository backed by this database.
func (db *DB) Posts() *PostDB {
	return &PostDB{db: db}
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// and the column names match databases created by earlier releases
// (hashedGoogleId, memberSince).
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			username       TEXT NOT NULL UNIQUE,
			hashedGoogleId TEXT NOT NULL UNIQUE,
			avatar_url     TEXT NOT NULL DEFAULT '',
			memberSince    DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			title     TEXT NOT NULL,
			content   TEXT NOT NULL,
			username  TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			likes     INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_posts_username ON posts(username);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate
// value in a UNIQUE column.
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
