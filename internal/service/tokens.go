package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

// VerificationStore manages the persisted side of verification tokens.
//
// The signed JWT proves integrity and carries an expiry on its own; the
// store exists for the guarantees a signature cannot give: each token is
// spent at most once and only for the purpose it was issued with.
type VerificationStore struct {
	tokens repository.VerificationTokenRepository
}

// NewVerificationStore creates a VerificationStore backed by the given
// repository.
func NewVerificationStore(tokens repository.VerificationTokenRepository) *VerificationStore {
	return &VerificationStore{tokens: tokens}
}

// Issue persists a token record for the user. A clash on the token string
// returns ErrDuplicateToken.
func (s *VerificationStore) Issue(ctx context.Context, userID int64, token string, purpose model.TokenPurpose, ttl time.Duration) (*model.VerificationToken, error) {
	record := &model.VerificationToken{
		UserID:    userID,
		Token:     token,
		Purpose:   purpose,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("issuing verification token: %w", err)
	}
	return record, nil
}

// Check validates the stored side of a token without consuming it.
//
// The order matters: an absent row means "not found or already used"; a
// purpose mismatch must NOT delete the row, so a token presented to the
// wrong endpoint stays valid for its real purpose; only then is expiry
// checked, against the UTC-normalized stored instant.
func (s *VerificationStore) Check(ctx context.Context, token string, purpose model.TokenPurpose) (*model.VerificationToken, error) {
	record, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("looking up verification token: %w", err)
	}
	if record.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	if record.ExpiresAt.Before(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}
	return record, nil
}

// Consume validates and then deletes the token, returning the owning user
// id. Under concurrent presentation of the same token exactly one caller
// gets the user id; the rest get ErrTokenNotFound.
func (s *VerificationStore) Consume(ctx context.Context, token string, purpose model.TokenPurpose) (int64, error) {
	record, err := s.Check(ctx, token, purpose)
	if err != nil {
		return 0, err
	}

	deleted, err := s.tokens.DeleteByToken(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("consuming verification token: %w", err)
	}
	if !deleted {
		// A concurrent consumer won the delete.
		return 0, ErrTokenNotFound
	}
	return record.UserID, nil
}
