// Package models defines the domain entities persisted by the session service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity record stored in Postgres. Rows are never hard-deleted;
// Deleted marks them logically removed.
type User struct {
	ID             string
	FirstName      string
	LastName       string
	Email          string
	HashedPassword string
	Deleted        bool
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedBy      *string
	UpdatedAt      *time.Time
}

// NewUser returns a User with a fresh id and the given audit owner. The
// password must already be hashed by the caller.
func NewUser(firstName, lastName, email, hashedPassword, createdBy string) *User {
	return &User{
		ID:             uuid.NewString(),
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedBy:      createdBy,
	}
}
