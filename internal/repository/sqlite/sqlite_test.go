package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/caracolito/auth-service/internal/model"
)

// newTestDB returns a DB backed by an in-memory database, migrated and
// cleaned up when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user and fails the test on error.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "$2a$04$fakehashfakehashfakehashfakehash",
		FirstName:    "Test",
		LastName:     "User",
		UserType:     model.UserTypeTeacher,
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// createTestToken inserts a verification token for the user.
func createTestToken(t *testing.T, db *DB, userID int64, tokenStr string, purpose model.TokenPurpose, ttl time.Duration) *model.VerificationToken {
	t.Helper()
	token := &model.VerificationToken{
		UserID:    userID,
		Token:     tokenStr,
		Purpose:   purpose,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := db.Tokens().Create(context.Background(), token); err != nil {
		t.Fatalf("failed to create test token: %v", err)
	}
	return token
}
