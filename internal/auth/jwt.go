package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	issuer = "caracolito-auth"

	// verificationKind tags tokens minted for email verification flows
	// (account activation and password reset). An access token presented
	// to VerifyVerification fails the kind check and is rejected.
	verificationKind = "verification"

	// VerificationTokenTTL is the default lifetime of activation and
	// password-reset tokens.
	VerificationTokenTTL = 24 * time.Hour
)

// Claims is the JWT payload for both access and verification tokens.
//
// Access tokens carry the user id in Subject plus UserType and Email.
// Verification tokens carry the user's email in Subject and Kind set to
// "verification". The registered ExpiresAt claim makes every token
// self-describing about its own lifetime.
type Claims struct {
	UserType string `json:"user_type,omitempty"`
	Email    string `json:"email,omitempty"`
	Kind     string `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// TokenService mints and validates HS256-signed JWTs.
//
// It holds the process-wide HMAC secret, read once at startup. The same
// secret signs and verifies, so no storage round trip is needed to check a
// token's integrity or expiry.
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenService creates a TokenService with the given secret and access
// token lifetime. The secret should be at least 32 bytes of random data in
// production, e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, accessTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL}, nil
}

// GenerateAccess mints an access token for an authenticated user.
// Claims: sub (user id), user_type, email, plus issuer and expiry.
func (s *TokenService) GenerateAccess(userID int64, userType, email string) (string, error) {
	now := time.Now()
	c := Claims{
		UserType: userType,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    issuer,
		},
	}
	return s.sign(c)
}

// GenerateVerification mints a token for email verification flows.
// Claims: sub (the email), kind="verification", and an expiry of ttl.
//
// The signature lets the activation/reset endpoints reject tampered or
// expired tokens without touching storage; the persisted row (see the
// verification-token store) enforces single use and purpose scoping, which
// a signature alone cannot.
func (s *TokenService) GenerateVerification(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Kind: verificationKind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
			// iat/exp have second resolution, so without a jti two tokens
			// minted for the same email in the same second would be
			// byte-identical and collide on the stored token's UNIQUE
			// constraint.
			ID: xid.New().String(),
		},
	}
	return s.sign(c)
}

func (s *TokenService) sign(c Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns its claims.
//
// Checks performed: signature, expiry, issuer, and that the signing
// algorithm really is HS256 (jwt.WithValidMethods closes the algorithm
// confusion hole where a token claims alg=none).
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	return c, nil
}

// ValidateAccess validates an access token and returns the user id from its
// Subject claim. Verification tokens are rejected: their subject is an
// email address, not a numeric id, so they can never pass as access tokens.
func (s *TokenService) ValidateAccess(tokenStr string) (int64, error) {
	c, err := s.Validate(tokenStr)
	if err != nil {
		return 0, err
	}
	if c.Kind != "" {
		return 0, fmt.Errorf("auth: not an access token")
	}
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: token subject is not a user id: %w", err)
	}
	return userID, nil
}

// VerifyVerification validates a verification token and returns the email
// from its Subject claim. Returns ("", false) for any invalid, expired, or
// wrong-kind token; it never reports why, and never panics.
func (s *TokenService) VerifyVerification(tokenStr string) (string, bool) {
	c, err := s.Validate(tokenStr)
	if err != nil || c.Kind != verificationKind || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}
