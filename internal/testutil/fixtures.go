package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	name     string
	email    string
	password string
	role     domain.Role
	inactive bool
	subject  string
	verified bool
}

// NewUserBuilder creates a new UserBuilder with default values: an active
// patient with a local password
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		name:     fmt.Sprintf("Test User %s", suffix),
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		password: "testpassword123",
		role:     domain.RolePatient,
	}
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithPassword sets the password; an empty password builds a provider-only account
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) WithRole(role domain.Role) *UserBuilder {
	b.role = role
	return b
}

func (b *UserBuilder) Inactive() *UserBuilder {
	b.inactive = true
	return b
}

// WithSubject links the user to an identity provider subject
func (b *UserBuilder) WithSubject(subject string) *UserBuilder {
	b.subject = subject
	b.verified = true
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	user := &domain.User{
		ID:               uuid.New(),
		Name:             b.name,
		Email:            b.email,
		Role:             b.role,
		ExternalVerified: b.verified,
		IsActive:         !b.inactive,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if b.password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		user.PasswordHash = string(hashedPassword)
	}
	if b.subject != "" {
		subject := b.subject
		user.ExternalSubjectID = &subject
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user, b.password
}

// PatientBuilder creates patient records owned by a nutritionist
type PatientBuilder struct {
	nutritionistID uuid.UUID
	name           string
	email          string
	userID         *uuid.UUID
}

func NewPatientBuilder(nutritionist *domain.User) *PatientBuilder {
	suffix := uuid.New().String()[:8]
	return &PatientBuilder{
		nutritionistID: nutritionist.ID,
		name:           fmt.Sprintf("Patient %s", suffix),
		email:          fmt.Sprintf("patient_%s@example.com", suffix),
	}
}

func (b *PatientBuilder) WithName(name string) *PatientBuilder {
	b.name = name
	return b
}

func (b *PatientBuilder) WithEmail(email string) *PatientBuilder {
	b.email = email
	return b
}

// LinkedTo links the patient record to a patient account
func (b *PatientBuilder) LinkedTo(user *domain.User) *PatientBuilder {
	id := user.ID
	b.userID = &id
	return b
}

func (b *PatientBuilder) Build(t *testing.T, db *gorm.DB) *domain.Patient {
	t.Helper()

	patient := &domain.Patient{
		ID:             uuid.New(),
		NutritionistID: b.nutritionistID,
		UserID:         b.userID,
		Name:           b.name,
		Email:          b.email,
		IsActive:       true,
	}
	if err := db.Create(patient).Error; err != nil {
		t.Fatalf("failed to create patient: %v", err)
	}
	return patient
}
