package auth

import (
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
)

// Source records which verification strategy produced a principal
type Source string

const (
	SourceLocal    Source = "local"
	SourceProvider Source = "provider"
)

// Principal is the request-scoped identity derived from a credential. It is
// never persisted.
type Principal struct {
	SubjectID     string
	UserID        uuid.UUID
	Email         string
	DisplayName   string
	Role          domain.Role
	EmailVerified bool
	Source        Source
}

// HasRole reports whether a role is attached to the principal
func (p *Principal) HasRole() bool {
	return p.Role != ""
}

// HasLocalUser reports whether the principal maps to a local user record
func (p *Principal) HasLocalUser() bool {
	return p.UserID != uuid.Nil
}
