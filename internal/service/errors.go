package service

import "github.com/caracolito/auth-service/internal/apperror"

// Domain errors returned by the services in this package. Each is a single
// package-level value so callers can match with errors.Is and handlers can
// map them to HTTP statuses through the apperror kind they wrap.
var (
	// ErrBadCredentials merges "unknown email" and "wrong password" into one
	// value so login responses never reveal whether an email is registered.
	ErrBadCredentials = apperror.Unauthorized("incorrect email or password")

	// ErrAccountDisabled is returned for correct credentials on an account
	// that has not completed email verification (or was deactivated).
	ErrAccountDisabled = apperror.Forbidden("account is not active")

	ErrEmailTaken = apperror.Conflict("an account with this email already exists")

	// ErrInvalidToken covers tokens that fail signature or structural
	// validation before storage is ever consulted.
	ErrInvalidToken = apperror.ValidationFailed("token", "invalid or expired token")

	// ErrTokenNotFound covers both "never issued" and "already used": a
	// consumed token row is deleted, so the two cases are indistinguishable.
	ErrTokenNotFound = apperror.ValidationFailed("token", "token not found or already used")

	ErrWrongPurpose = apperror.ValidationFailed("token", "token was issued for a different purpose")

	ErrTokenExpired = apperror.ValidationFailed("token", "token has expired")

	ErrDuplicateToken = apperror.Conflict("verification token already exists")

	ErrUserNotFound = &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}

	// ErrEmailLinked is returned when a Google sign-in resolves to an email
	// already linked to a different Google account.
	ErrEmailLinked = apperror.Conflict("email is already linked to another Google account")

	// ErrEmailNotVerified rejects Google identities whose email Google has
	// not verified; accepting one would let anyone claim an address they
	// merely typed into a Google signup form.
	ErrEmailNotVerified = apperror.Forbidden("Google account email is not verified")

	// ErrGoogleAuth is the uniform answer for every upstream Google failure
	// (bad code, expired ID token, timeout, malformed response).
	ErrGoogleAuth = apperror.Unauthorized("could not authenticate with Google")
)
