package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/auth"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

// GoogleVerifier is the Google port of the orchestrator. Implemented by
// auth.GoogleProvider; tests substitute a fake.
type GoogleVerifier interface {
	ExchangeCode(ctx context.Context, code string) (*auth.GoogleClaims, error)
	VerifyIDToken(ctx context.Context, idToken string) (*auth.GoogleClaims, error)
}

// Mailer sends the two transactional emails of the service. Implemented by
// email.Mailer; delivery failure must never abort the calling flow.
type Mailer interface {
	SendActivation(to, token string) error
	SendPasswordReset(to, token string) error
}

// AuthResult is the outcome of a successful authentication.
type AuthResult struct {
	AccessToken string
	TokenType   string
	User        *model.User
	IsNewUser   bool
}

// ProfileUpdate carries the mutable profile fields. Email is deliberately
// absent: it is the account's identity and verification anchor.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Phone     string
	CountryID *int64
}

// AuthService orchestrates the authentication flows: login, registration
// with email verification, password reset, and the two Google sign-in
// variants.
type AuthService struct {
	users     repository.UserRepository
	store     *VerificationStore
	resolver  *Resolver
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	google    GoogleVerifier
	mailer    Mailer
	logger    *slog.Logger

	verificationTTL time.Duration
}

// NewAuthService wires the orchestrator. verificationTTL bounds activation
// and reset tokens; zero falls back to the 24h default.
func NewAuthService(
	users repository.UserRepository,
	store *VerificationStore,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	google GoogleVerifier,
	mailer Mailer,
	logger *slog.Logger,
	verificationTTL time.Duration,
) *AuthService {
	if verificationTTL <= 0 {
		verificationTTL = auth.VerificationTokenTTL
	}
	return &AuthService{
		users:           users,
		store:           store,
		resolver:        NewResolver(users, passwords),
		passwords:       passwords,
		tokens:          tokens,
		google:          google,
		mailer:          mailer,
		logger:          logger,
		verificationTTL: verificationTTL,
	}
}

// Login authenticates an email/password pair and mints an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.resolver.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issueAccess(user, false)
}

// RegisterEmail creates an inactive account and starts email verification.
//
// The user row and its activation token are written in one transaction, so
// a crash can never leave an account that no token can ever activate. The
// activation email is best-effort: a delivery failure is logged and the
// registration still succeeds, matching the generic "check your inbox"
// contract of the endpoint.
func (s *AuthService) RegisterEmail(ctx context.Context, in RegisterInput) (*model.User, error) {
	user, err := s.resolver.Register(ctx, in)
	if err != nil {
		return nil, err
	}

	signed, err := s.tokens.GenerateVerification(user.Email, s.verificationTTL)
	if err != nil {
		return nil, fmt.Errorf("minting activation token: %w", err)
	}
	record := &model.VerificationToken{
		Token:     signed,
		Purpose:   model.PurposeAccountActivation,
		ExpiresAt: time.Now().UTC().Add(s.verificationTTL),
	}

	if err := s.users.CreateWithToken(ctx, user, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("persisting registration: %w", err)
	}

	if err := s.mailer.SendActivation(user.Email, signed); err != nil {
		s.logger.Error("sending activation email",
			"email", user.Email, "error", err)
	}
	return user, nil
}

// RequestPasswordReset starts the password-reset flow for the email.
//
// It never reports whether the email is registered: unknown addresses and
// internal failures alike are swallowed after logging, and the handler
// returns one generic confirmation for every outcome.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("looking up reset email", "error", err)
		}
		return
	}

	signed, err := s.tokens.GenerateVerification(user.Email, s.verificationTTL)
	if err != nil {
		s.logger.Error("minting reset token", "error", err)
		return
	}
	if _, err := s.store.Issue(ctx, user.ID, signed, model.PurposePasswordReset, s.verificationTTL); err != nil {
		s.logger.Error("persisting reset token", "error", err)
		return
	}

	if err := s.mailer.SendPasswordReset(user.Email, signed); err != nil {
		s.logger.Error("sending reset email", "email", user.Email, "error", err)
	}
}

// ConfirmPasswordReset spends a reset token and installs the new password.
//
// The token runs the full gauntlet: signature and expiry via the JWT,
// existence, purpose, and stored expiry via the store, and finally the user
// looked up by the token row's id must still carry the email the JWT was
// minted for. The password overwrite and the token deletion commit in one
// transaction; a concurrent confirmation of the same token fails cleanly.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	email, ok := s.tokens.VerifyVerification(token)
	if !ok {
		return ErrInvalidToken
	}

	record, err := s.store.Check(ctx, token, model.PurposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("looking up reset user: %w", err)
	}
	if user.Email != email {
		return ErrUserNotFound
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}

	if err := s.users.ResetPassword(ctx, user.ID, hash, token); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("resetting password: %w", err)
	}
	return nil
}

// VerifyEmail spends an activation token and activates the account.
//
// The already-active case (a second click on the activation link after the
// first succeeded through another token, or an account activated by Google
// linking) short-circuits WITHOUT consuming the token and reports
// alreadyActive=true.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (user *model.User, alreadyActive bool, err error) {
	email, ok := s.tokens.VerifyVerification(token)
	if !ok {
		return nil, false, ErrInvalidToken
	}

	record, err := s.store.Check(ctx, token, model.PurposeAccountActivation)
	if err != nil {
		return nil, false, err
	}

	user, err = s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, fmt.Errorf("looking up activation user: %w", err)
	}
	if user.Email != email {
		return nil, false, ErrUserNotFound
	}

	if user.IsActive {
		return user, true, nil
	}

	if err := s.users.Activate(ctx, user.ID, token); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			return nil, false, ErrTokenNotFound
		}
		return nil, false, fmt.Errorf("activating account: %w", err)
	}
	user.IsActive = true
	return user, false, nil
}

// GoogleLogin authenticates a Google ID token obtained by the frontend.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	claims, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("google id token rejected", "error", err)
		return nil, ErrGoogleAuth
	}
	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return s.resolveGoogle(ctx, claims)
}

// ExchangeGoogleCode authenticates a one-time authorization code from the
// frontend's consent popup. Every upstream failure, from a stale code to a
// timeout, collapses into the same ErrGoogleAuth.
func (s *AuthService) ExchangeGoogleCode(ctx context.Context, code string) (*AuthResult, error) {
	claims, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Warn("google code exchange failed", "error", err)
		return nil, ErrGoogleAuth
	}
	return s.resolveGoogle(ctx, claims)
}

func (s *AuthService) resolveGoogle(ctx context.Context, claims *auth.GoogleClaims) (*AuthResult, error) {
	user, isNew, err := s.resolver.ResolveGoogle(ctx, claims)
	if err != nil {
		return nil, err
	}
	return s.issueAccess(user, isNew)
}

func (s *AuthService) issueAccess(user *model.User, isNew bool) (*AuthResult, error) {
	access, err := s.tokens.GenerateAccess(user.ID, string(user.UserType), user.Email)
	if err != nil {
		return nil, fmt.Errorf("minting access token: %w", err)
	}
	return &AuthResult{
		AccessToken: access,
		TokenType:   "bearer",
		User:        user,
		IsNewUser:   isNew,
	}, nil
}

// Profile returns the account for an authenticated user id.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the mutable profile fields. Email and user type
// never change through this path.
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (*model.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Phone = in.Phone
	user.CountryID = in.CountryID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account if no account with the
// email exists yet. Called once at startup; idempotent across restarts.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("checking admin account: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	admin := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		UserType:     model.UserTypeAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("creating admin account: %w", err)
	}
	s.logger.Info("admin account created", "email", email)
	return nil
}
