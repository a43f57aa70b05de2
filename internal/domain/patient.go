package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is a nutritionist's client record. UserID is set once the patient
// accepts an invite and links their own account.
type Patient struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NutritionistID uuid.UUID      `json:"nutritionistId" gorm:"type:uuid;not null;index"`
	UserID         *uuid.UUID     `json:"userId" gorm:"type:uuid;index"`
	Name           string         `json:"name" gorm:"not null"`
	Email          string         `json:"email" gorm:"index"`
	Phone          string         `json:"phone"`
	BirthDate      *time.Time     `json:"birthDate"`
	Gender         string         `json:"gender" gorm:"type:varchar(10)"`
	Goals          string         `json:"goals" gorm:"type:text"`
	Notes          string         `json:"notes" gorm:"type:text"`
	IsActive       bool           `json:"isActive" gorm:"not null"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	Nutritionist *User `json:"-" gorm:"foreignKey:NutritionistID"`
}
