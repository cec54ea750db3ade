package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caracolito/auth-service/internal/apperror"
	"github.com/caracolito/auth-service/internal/model"
	"github.com/caracolito/auth-service/internal/repository"
)

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$somehash",
		FirstName:    "Alice",
		LastName:     "Smith",
		UserType:     model.UserTypeTeacher,
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == 0 {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice@example.com")

	dup := &model.User{
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$otherhash",
	}
	err := db.Users().Create(context.Background(), dup)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestUserCreate_DuplicateGoogleID(t *testing.T) {
	db := newTestDB(t)

	first := &model.User{Email: "a@example.com", PasswordHash: "h", GoogleID: "G1"}
	if err := db.Users().Create(context.Background(), first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second := &model.User{Email: "b@example.com", PasswordHash: "h", GoogleID: "G1"}
	err := db.Users().Create(context.Background(), second)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("Create() error = %v, want ErrDuplicate for duplicate google_id", err)
	}
}

func TestUserCreate_EmptyGoogleIDsDoNotCollide(t *testing.T) {
	db := newTestDB(t)

	// Unlinked accounts store NULL, which SQLite exempts from UNIQUE.
	createTestUser(t, db, "a@example.com")
	createTestUser(t, db, "b@example.com")
}

func TestUserLookups(t *testing.T) {
	db := newTestDB(t)

	created := &model.User{
		Email:        "carol@example.com",
		PasswordHash: "h",
		GoogleID:     "G42",
		IsOAuthUser:  true,
		IsActive:     true,
	}
	if err := db.Users().Create(context.Background(), created); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	byID, err := db.Users().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Email != "carol@example.com" {
		t.Errorf("GetByID().Email = %q", byID.Email)
	}

	byEmail, err := db.Users().GetByEmail(context.Background(), "carol@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if byEmail.ID != created.ID {
		t.Errorf("GetByEmail().ID = %d, want %d", byEmail.ID, created.ID)
	}
	if byEmail.GoogleID != "G42" {
		t.Errorf("GetByEmail().GoogleID = %q, want %q", byEmail.GoogleID, "G42")
	}

	byGoogle, err := db.Users().GetByGoogleID(context.Background(), "G42")
	if err != nil {
		t.Fatalf("GetByGoogleID() error = %v", err)
	}
	if byGoogle.ID != created.ID {
		t.Errorf("GetByGoogleID().ID = %d, want %d", byGoogle.ID, created.ID)
	}
}

func TestUserLookups_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.Users().GetByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
	if _, err := db.Users().GetByGoogleID(context.Background(), "G-none"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByGoogleID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.Users().GetByID(context.Background(), 9999); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdate_Link(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "dave@example.com")

	user.GoogleID = "G7"
	user.IsOAuthUser = true
	user.IsActive = true
	if err := db.Users().Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.Users().GetByGoogleID(context.Background(), "G7")
	if err != nil {
		t.Fatalf("GetByGoogleID() after link error = %v", err)
	}
	if got.ID != user.ID || !got.IsOAuthUser || !got.IsActive {
		t.Errorf("linked user = %+v, want linked/active", got)
	}
}

func TestCreateWithToken(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Email: "eve@example.com", PasswordHash: "h"}
	token := &model.VerificationToken{
		Token:     "signed-token-1",
		Purpose:   model.PurposeAccountActivation,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	if err := db.Users().CreateWithToken(context.Background(), user, token); err != nil {
		t.Fatalf("CreateWithToken() error = %v", err)
	}

	if user.ID == 0 || token.ID == 0 {
		t.Fatalf("CreateWithToken() left ids unset: user=%d token=%d", user.ID, token.ID)
	}
	if token.UserID != user.ID {
		t.Errorf("token.UserID = %d, want %d", token.UserID, user.ID)
	}

	got, err := db.Tokens().GetByToken(context.Background(), "signed-token-1")
	if err != nil {
		t.Fatalf("GetByToken() after CreateWithToken error = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("stored token.UserID = %d, want %d", got.UserID, user.ID)
	}
}

func TestCreateWithToken_RollsBackOnDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "frank@example.com")

	user := &model.User{Email: "frank@example.com", PasswordHash: "h"}
	token := &model.VerificationToken{
		Token:     "signed-token-2",
		Purpose:   model.PurposeAccountActivation,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	err := db.Users().CreateWithToken(context.Background(), user, token)
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("CreateWithToken() error = %v, want ErrDuplicate", err)
	}

	// Neither row may exist.
	if _, err := db.Tokens().GetByToken(context.Background(), "signed-token-2"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("token row survived a rolled-back registration: %v", err)
	}
}

func TestActivate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "gina@example.com")
	createTestToken(t, db, user.ID, "activation-1", model.PurposeAccountActivation, time.Hour)

	if err := db.Users().Activate(context.Background(), user.ID, "activation-1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	got, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.IsActive {
		t.Error("user still inactive after Activate()")
	}
	if _, err := db.Tokens().GetByToken(context.Background(), "activation-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("token survived Activate(): %v", err)
	}
}

func TestActivate_TokenAlreadyConsumed(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "hank@example.com")
	createTestToken(t, db, user.ID, "activation-2", model.PurposeAccountActivation, time.Hour)

	if err := db.Users().Activate(context.Background(), user.ID, "activation-2"); err != nil {
		t.Fatalf("first Activate() error = %v", err)
	}

	err := db.Users().Activate(context.Background(), user.ID, "activation-2")
	if !errors.Is(err, repository.ErrTokenConsumed) {
		t.Fatalf("second Activate() error = %v, want ErrTokenConsumed", err)
	}
}

func TestResetPassword(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "ivy@example.com")
	createTestToken(t, db, user.ID, "reset-1", model.PurposePasswordReset, time.Hour)

	if err := db.Users().ResetPassword(context.Background(), user.ID, "$2a$04$newhash", "reset-1"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	got, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PasswordHash != "$2a$04$newhash" {
		t.Errorf("PasswordHash = %q, want the new hash", got.PasswordHash)
	}
	if _, err := db.Tokens().GetByToken(context.Background(), "reset-1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("token survived ResetPassword(): %v", err)
	}
}
