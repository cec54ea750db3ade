// Package model defines the data structures used throughout the application.
package model

import "time"

// UserType classifies an account. New accounts (self-registered or created
// through Google sign-in) default to TEACHER; ADMIN accounts are seeded at
// startup.
type UserType string

const (
	UserTypeAdmin   UserType = "ADMIN"
	UserTypeTeacher UserType = "TEACHER"
)

// User represents a registered account.
//
// PasswordHash is never empty. Accounts created through Google sign-in get a
// bcrypt hash of a freshly generated random value, so the column constraint
// holds and the placeholder can never be used for password login.
//
// GoogleID is the stable subject identifier from Google. The empty string
// means "not linked" and is stored as NULL, so the UNIQUE constraint only
// applies to linked accounts.
//
// IsActive gates password login. Self-registered accounts start inactive and
// are activated by the email-verification flow; Google accounts are active
// from creation.
type User struct {
	ID           int64     `json:"id"            db:"id"`
	Email        string    `json:"email"         db:"email"`
	PasswordHash string    `json:"-"             db:"password_hash"`
	FirstName    string    `json:"first_name"    db:"first_name"`
	LastName     string    `json:"last_name"     db:"last_name"`
	Phone        string    `json:"phone"         db:"phone"`
	UserType     UserType  `json:"user_type"     db:"user_type"`
	IsActive     bool      `json:"is_active"     db:"is_active"`
	GoogleID     string    `json:"-"             db:"google_id"`
	IsOAuthUser  bool      `json:"is_oauth_user" db:"is_oauth_user"`
	CountryID    *int64    `json:"country_id"    db:"country_id"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}
