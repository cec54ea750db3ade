package repository

import (
	"context"
	"errors"

	"github.com/caracolito/auth-service/internal/model"
)

// ErrDuplicate signals a uniqueness violation (email, google_id, or token
// string). Callers distinguish it from other storage failures with
// errors.Is; the storage layer's constraints are the source of truth, the
// application never pre-checks to prevent the race.
var ErrDuplicate = errors.New("repository: duplicate key")

// ErrTokenConsumed signals that a verification token row vanished between
// validation and the transactional delete: a concurrent consumer won.
var ErrTokenConsumed = errors.New("repository: token already consumed")

// UserRepository is the storage port for user accounts.
//
// Lookups return apperror.ErrNotFound-wrapped errors when no row matches.
// Activate and ResetPassword fold the deletion of the spent verification
// token into the same transaction as the user mutation, so a half-applied
// flow can never be observed.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error

	// CreateWithToken inserts a user and their activation token in one
	// transaction; registration either produces both rows or neither.
	CreateWithToken(ctx context.Context, user *model.User, token *model.VerificationToken) error

	// Activate marks the user active and deletes the consumed token.
	Activate(ctx context.Context, userID int64, token string) error

	// ResetPassword overwrites the password hash and deletes the consumed
	// token.
	ResetPassword(ctx context.Context, userID int64, passwordHash, token string) error
}

// VerificationTokenRepository is the storage port for single-use tokens.
type VerificationTokenRepository interface {
	Create(ctx context.Context, token *model.VerificationToken) error
	GetByToken(ctx context.Context, token string) (*model.VerificationToken, error)

	// DeleteByToken removes the row and reports whether it still existed.
	// Under concurrent consumption exactly one caller sees true.
	DeleteByToken(ctx context.Context, token string) (bool, error)
}
