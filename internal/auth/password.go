// Package auth provides the cryptographic primitives of the service:
// bcrypt password hashing, JWT minting/validation, and the Google OAuth
// integration.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server: negligible for a login, expensive for an offline attacker.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It is a struct rather than free functions so the cost can be injected:
// tests use the bcrypt minimum (4) to avoid paying 250ms per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom (low)
// cost. Do not use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output embeds the salt and cost, so it can be stored as-is and later
// verified without any extra bookkeeping. Plaintexts longer than 72 bytes
// are rejected explicitly because bcrypt would silently truncate them.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored bcrypt hash.
//
// bcrypt.CompareHashAndPassword compares in constant time, so the result
// does not leak where a mismatch occurred. A malformed hash verifies as
// false rather than producing an error: to a caller deciding whether a
// login succeeds, a corrupt digest and a wrong password are the same thing.
func (p *PasswordService) Verify(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
