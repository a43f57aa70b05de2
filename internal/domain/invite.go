package domain

import (
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
	InviteExpired  InviteStatus = "expired"
)

// InviteExpiryDuration is how long a patient invite stays valid
const InviteExpiryDuration = 7 * 24 * time.Hour

// PatientInvite lets a nutritionist link a patient record to a patient account
type PatientInvite struct {
	ID             uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NutritionistID uuid.UUID    `json:"nutritionistId" gorm:"type:uuid;not null;index"`
	PatientID      uuid.UUID    `json:"patientId" gorm:"type:uuid;not null"`
	Email          string       `json:"email" gorm:"not null;index"`
	TokenHash      string       `json:"-" gorm:"uniqueIndex;not null"`
	Status         InviteStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	ExpiresAt      time.Time    `json:"expiresAt" gorm:"not null"`
	AcceptedAt     *time.Time   `json:"acceptedAt"`
	AcceptedBy     *uuid.UUID   `json:"acceptedBy" gorm:"type:uuid"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
