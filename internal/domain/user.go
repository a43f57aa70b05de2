package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name              string     `json:"name" gorm:"not null"`
	Email             string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role" gorm:"type:varchar(20);not null;default:'patient'"`
	ExternalSubjectID *string    `json:"-" gorm:"uniqueIndex"`
	ExternalVerified  bool       `json:"externalVerified" gorm:"not null;default:false"`
	IsActive          bool       `json:"isActive" gorm:"not null"`
	LastLogin         *time.Time `json:"lastLogin"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// HasLocalCredential reports whether the account can log in with a password
func (u *User) HasLocalCredential() bool {
	return u.PasswordHash != ""
}

// IsFederated reports whether the account is linked to the identity provider
func (u *User) IsFederated() bool {
	return u.ExternalSubjectID != nil && *u.ExternalSubjectID != ""
}

// Validate enforces the account invariants: a valid role, and a password hash
// unless the account is identity-provider only.
func (u *User) Validate() error {
	if !u.Role.IsValid() {
		return ErrInvalidRole
	}
	if !u.HasLocalCredential() && !u.IsFederated() {
		return ErrMissingCredentialSource
	}
	return nil
}
