package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the user's email address. It is unique across accounts
	// and is how owners address collaborators.
	Email string `json:"email" db:"email"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdOn" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// UserSummary is the public identity of a user shown alongside shared stories.
type UserSummary struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Summary returns the public identity of the user.
func (u User) Summary() UserSummary {
	return UserSummary{FullName: u.FullName, Email: u.Email}
}
