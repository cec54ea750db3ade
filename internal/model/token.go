package model

import "time"

// TokenPurpose scopes a verification token to exactly one flow. A token
// issued for account activation must never be accepted for a password reset,
// and vice versa.
type TokenPurpose string

const (
	PurposeAccountActivation TokenPurpose = "account_activation"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// VerificationToken is the persisted side of a signed verification token.
//
// Token stores the signed JWT string itself (UNIQUE in the database). The
// signature already proves integrity and carries an expiry; the row exists
// to enforce what a signature cannot: single use and purpose scoping. The
// row is deleted the moment its purpose is fulfilled.
//
// ExpiresAt is always a UTC instant. The stored expiry mirrors the JWT "exp"
// claim so the database check and the signature check agree.
type VerificationToken struct {
	ID        int64        `json:"id"         db:"id"`
	UserID    int64        `json:"user_id"    db:"user_id"`
	Token     string       `json:"token"      db:"token"`
	Purpose   TokenPurpose `json:"purpose"    db:"purpose"`
	ExpiresAt time.Time    `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
