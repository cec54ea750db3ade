package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/auth"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

// RegisterInput carries the profile fields of a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	CountryID *int64
}

// Resolver turns credentials (password or Google identity) into user
// accounts. It owns the account state machine; persistence side effects
// beyond simple create/link are left to the orchestrator.
type Resolver struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
}

// NewResolver creates a Resolver.
func NewResolver(users repository.UserRepository, passwords *auth.PasswordService) *Resolver {
	return &Resolver{users: users, passwords: passwords}
}

// Login resolves an email/password pair to an active account.
//
// Unknown email and wrong password both return ErrBadCredentials, the same
// value, so the response cannot be used to probe which emails are
// registered. The is_active gate runs only after the password check:
// an attacker without the password learns nothing about activation state.
func (r *Resolver) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("resolving login email: %w", err)
	}

	if !r.passwords.Verify(user.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// Register builds a new inactive account from the input. The returned user
// is NOT persisted: the orchestrator stores it together with its activation
// token in one transaction.
func (r *Resolver) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	_, err := r.users.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email availability: %w", err)
	}

	hash, err := r.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	return &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		UserType:     model.UserTypeTeacher,
		IsActive:     false,
		CountryID:    in.CountryID,
	}, nil
}

// ResolveGoogle maps a verified Google identity to a local account.
//
// The state machine, keyed first on Google's stable subject id and then on
// email:
//
//	google_id known            -> sign in to that account
//	email unknown              -> create a new active OAuth account
//	email known, not linked    -> link google_id to the existing account
//	email known, linked to a
//	different google_id        -> ErrEmailLinked
//
// The boolean result reports whether a new account was created. A resolved
// but inactive account returns ErrAccountDisabled.
func (r *Resolver) ResolveGoogle(ctx context.Context, claims *auth.GoogleClaims) (*model.User, bool, error) {
	user, err := r.users.GetByGoogleID(ctx, claims.Subject)
	if err == nil {
		if !user.IsActive {
			return nil, false, ErrAccountDisabled
		}
		return user, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("resolving google id: %w", err)
	}

	user, err = r.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			created, err := r.createGoogleUser(ctx, claims)
			if err != nil {
				return nil, false, err
			}
			return created, true, nil
		}
		return nil, false, fmt.Errorf("resolving google email: %w", err)
	}

	if user.GoogleID != "" && user.GoogleID != claims.Subject {
		return nil, false, ErrEmailLinked
	}

	// Existing password account: link it. Linking also activates, because
	// Google has verified the email, which is all activation asserts.
	user.GoogleID = claims.Subject
	user.IsOAuthUser = true
	user.IsActive = true
	if err := r.users.Update(ctx, user); err != nil {
		return nil, false, fmt.Errorf("linking google account: %w", err)
	}
	return user, false, nil
}

// createGoogleUser builds and persists a fresh OAuth account. The password
// column must never be empty, so it gets a bcrypt hash of a random value
// that is discarded immediately: password login on this account is
// impossible until a password reset sets a real one.
func (r *Resolver) createGoogleUser(ctx context.Context, claims *auth.GoogleClaims) (*model.User, error) {
	placeholder, err := r.passwords.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("hashing placeholder password: %w", err)
	}

	user := &model.User{
		Email:        claims.Email,
		PasswordHash: placeholder,
		FirstName:    claims.GivenName,
		LastName:     claims.FamilyName,
		UserType:     model.UserTypeTeacher,
		IsActive:     true,
		GoogleID:     claims.Subject,
		IsOAuthUser:  true,
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race against a concurrent sign-in with the same
			// identity.
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating google user: %w", err)
	}
	return user, nil
}
