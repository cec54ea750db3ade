package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

// TokenDB implements repository.VerificationTokenRepository on the shared
// pool.
type TokenDB struct {
	conn *sql.DB
}

// compile-time check that *TokenDB implements repository.VerificationTokenRepository
var _ repository.VerificationTokenRepository = (*TokenDB)(nil)

// Create persists a verification token. The token string carries a UNIQUE
// constraint; a clash (astronomically unlikely with signed tokens, but
// possible) returns ErrDuplicate.
func (db *TokenDB) Create(ctx context.Context, token *model.VerificationToken) error {
	token.CreatedAt = time.Now().UTC()
	token.ExpiresAt = token.ExpiresAt.UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO verification_tokens (user_id, token, purpose, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.UserID,
		token.Token,
		string(token.Purpose),
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting verification token: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("sqlite: inserting verification token: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new token id: %w", err)
	}
	token.ID = id
	return nil
}

// GetByToken retrieves a verification token row by its token string.
// Returns an apperror.ErrNotFound-wrapped error when no row matches, which
// deliberately covers both "never existed" and "already consumed".
func (db *TokenDB) GetByToken(ctx context.Context, tokenStr string) (*model.VerificationToken, error) {
	var (
		t       model.VerificationToken
		purpose string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, token, purpose, expires_at, created_at
		 FROM verification_tokens WHERE token = ?`,
		tokenStr,
	).Scan(&t.ID, &t.UserID, &t.Token, &purpose, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("verification token", abbreviate(tokenStr))
		}
		return nil, fmt.Errorf("sqlite: getting verification token: %w", err)
	}
	t.Purpose = model.TokenPurpose(purpose)

	// Stored expiries are UTC instants; normalize whatever the driver
	// produced so comparisons against time.Now().UTC() are sound.
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// DeleteByToken removes the row for the given token string and reports
// whether it was still present. With two concurrent consumers exactly one
// sees true; the loser must treat the token as not found.
func (db *TokenDB) DeleteByToken(ctx context.Context, tokenStr string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE token = ?`, tokenStr)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting verification token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: reading delete count: %w", err)
	}
	return affected > 0, nil
}

// abbreviate shortens token strings for error messages and logs; the full
// value is a live credential and must not leak.
func abbreviate(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
