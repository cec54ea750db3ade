package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

// UserDB implements repository.UserRepository on the shared pool.
type UserDB struct {
	conn *sql.DB
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, password_hash, first_name, last_name, phone,
	user_type, is_active, google_id, is_oauth_user, country_id, created_at, updated_at`

// Create inserts a new user. The id and timestamps are filled in on the
// passed struct. A clash on email or google_id returns ErrDuplicate.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.UserType == "" {
		user.UserType = model.UserTypeTeacher
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, phone,
			user_type, is_active, google_id, is_oauth_user, country_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		string(user.UserType),
		user.IsActive,
		nullableString(user.GoogleID),
		user.IsOAuthUser,
		user.CountryID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by primary key.
// Returns an apperror.ErrNotFound-wrapped error if no user exists.
func (db *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		strconv.FormatInt(id, 10), id)
}

// GetByEmail retrieves a user by their (unique) email.
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		email, email)
}

// GetByGoogleID retrieves a user by their linked Google subject id.
func (db *UserDB) GetByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = ?`,
		googleID, googleID)
}

func (db *UserDB) getUser(ctx context.Context, query, label string, arg any) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, query, arg)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", label, err)
	}
	return user, nil
}

// Update persists the mutable fields of an existing user.
func (db *UserDB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			first_name = ?, last_name = ?, phone = ?, user_type = ?,
			is_active = ?, google_id = ?, is_oauth_user = ?, country_id = ?,
			password_hash = ?, updated_at = ?
		 WHERE id = ?`,
		user.FirstName,
		user.LastName,
		user.Phone,
		string(user.UserType),
		user.IsActive,
		nullableString(user.GoogleID),
		user.IsOAuthUser,
		user.CountryID,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: updating user %d: %w", user.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}
	return nil
}

// CreateWithToken inserts a user together with their activation token in a
// single transaction. If either insert fails both roll back, so no user row
// is ever left without its token row.
func (db *UserDB) CreateWithToken(ctx context.Context, user *model.User, token *model.VerificationToken) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning registration tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.UserType == "" {
		user.UserType = model.UserTypeTeacher
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, phone,
			user_type, is_active, google_id, is_oauth_user, country_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		string(user.UserType),
		user.IsActive,
		nullableString(user.GoogleID),
		user.IsOAuthUser,
		user.CountryID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	token.UserID = id
	token.CreatedAt = now
	token.ExpiresAt = token.ExpiresAt.UTC()
	res, err = tx.ExecContext(ctx,
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
	if token.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading new token id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing registration tx: %w", err)
	}
	return nil
}

// Activate marks the user active and deletes the consumed activation token
// in one transaction. The DELETE's affected-row count arbitrates concurrent
// consumption: if another request already spent the token, the whole
// transaction rolls back and ErrTokenConsumed is returned.
func (db *UserDB) Activate(ctx context.Context, userID int64, token string) error {
	return db.mutateAndConsume(ctx, token,
		`UPDATE users SET is_active = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
}

// ResetPassword overwrites the user's password hash and deletes the
// consumed reset token in one transaction.
func (db *UserDB) ResetPassword(ctx context.Context, userID int64, passwordHash, token string) error {
	return db.mutateAndConsume(ctx, token,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), userID)
}

func (db *UserDB) mutateAndConsume(ctx context.Context, token, updateQuery string, args ...any) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning consume tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("sqlite: deleting verification token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading delete count: %w", err)
	}
	if affected == 0 {
		return repository.ErrTokenConsumed
	}

	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		return fmt.Errorf("sqlite: updating user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing consume tx: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u         model.User
		userType  string
		googleID  sql.NullString
		countryID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&userType,
		&u.IsActive,
		&googleID,
		&u.IsOAuthUser,
		&countryID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.UserType = model.UserType(userType)
	u.GoogleID = googleID.String
	if countryID.Valid {
		u.CountryID = &countryID.Int64
	}
	return &u, nil
}

// nullableString maps "" to NULL so empty google_id values stay outside the
// UNIQUE constraint.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
