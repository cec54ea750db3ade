// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure Go translation of the SQLite sources, so the
// binary cross-compiles without a C toolchain. The blank import below
// registers it with database/sql under the driver name "sqlite".
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements both repository
// interfaces. The pool is owned by whoever called New and must be closed on
// shutdown to flush the WAL and release the file lock.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets concurrent reads proceed while a write is in flight;
	// without it SQLite locks the whole file per write.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
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

// Users returns the user repository backed by this pool.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// Tokens returns the verification-token repository backed by this pool.
func (db *DB) Tokens() *TokenDB {
	return &TokenDB{conn: db.conn}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent across restarts.
//
// Uniqueness lives here, not in application code: email, google_id, and
// token carry UNIQUE constraints, and racing writers surface the violation
// as ErrDuplicate instead of silently double-inserting. google_id is
// nullable, and SQLite exempts NULLs from UNIQUE, so only linked accounts
// participate in the constraint.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			phone         TEXT NOT NULL DEFAULT '',
			user_type     TEXT NOT NULL DEFAULT 'TEACHER',
			is_active     INTEGER NOT NULL DEFAULT 0,
			google_id     TEXT UNIQUE,
			is_oauth_user INTEGER NOT NULL DEFAULT 0,
			country_id    INTEGER,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS verification_tokens (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			token      TEXT NOT NULL UNIQUE,
			purpose    TEXT NOT NULL DEFAULT 'account_activation',
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_verification_tokens_user_id
			ON verification_tokens(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating verification_tokens table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure. The driver exposes the condition only through the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
