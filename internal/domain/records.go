package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NutritionalAssessment struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NutritionistID uuid.UUID      `json:"nutritionistId" gorm:"type:uuid;not null;index"`
	PatientID      uuid.UUID      `json:"patientId" gorm:"type:uuid;not null;index"`
	AssessedAt     time.Time      `json:"assessedAt" gorm:"not null"`
	WeightKg       float64        `json:"weightKg" gorm:"not null"`
	HeightCm       float64        `json:"heightCm" gorm:"not null"`
	BodyFatPct     *float64       `json:"bodyFatPct"`
	BMI            float64        `json:"bmi"`
	Measurements   datatypes.JSON `json:"measurements,omitempty"`
	Notes          string         `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	Patient *Patient `json:"-" gorm:"foreignKey:PatientID"`
}

// ComputeBMI derives the body mass index from weight and height, rounded to two decimals
func (a *NutritionalAssessment) ComputeBMI() {
	if a.HeightCm <= 0 {
		a.BMI = 0
		return
	}
	m := a.HeightCm / 100
	a.BMI = math.Round(a.WeightKg/(m*m)*100) / 100
}

type DietPlanStatus string

const (
	DietPlanDraft     DietPlanStatus = "draft"
	DietPlanActive    DietPlanStatus = "active"
	DietPlanCompleted DietPlanStatus = "completed"
)

type DietPlan struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NutritionistID uuid.UUID      `json:"nutritionistId" gorm:"type:uuid;not null;index"`
	PatientID      uuid.UUID      `json:"patientId" gorm:"type:uuid;not null;index"`
	Title          string         `json:"title" gorm:"not null"`
	Description    string         `json:"description" gorm:"type:text"`
	DailyCalories  int            `json:"dailyCalories"`
	StartDate      time.Time      `json:"startDate" gorm:"not null"`
	EndDate        *time.Time     `json:"endDate"`
	Meals          datatypes.JSON `json:"meals,omitempty"`
	Status         DietPlanStatus `json:"status" gorm:"type:varchar(20);not null;default:'draft'"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	Patient *Patient `json:"-" gorm:"foreignKey:PatientID"`
}

type ConsultationType string

const (
	ConsultationInitial  ConsultationType = "initial"
	ConsultationFollowUp ConsultationType = "follow_up"
	ConsultationOnline   ConsultationType = "online"
)

type ConsultationStatus string

const (
	ConsultationScheduled ConsultationStatus = "scheduled"
	ConsultationCompleted ConsultationStatus = "completed"
	ConsultationCancelled ConsultationStatus = "cancelled"
	ConsultationNoShow    ConsultationStatus = "no_show"
)

type Consultation struct {
	ID              uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	NutritionistID  uuid.UUID          `json:"nutritionistId" gorm:"type:uuid;not null;index"`
	PatientID       uuid.UUID          `json:"patientId" gorm:"type:uuid;not null;index"`
	ScheduledAt     time.Time          `json:"scheduledAt" gorm:"not null;index"`
	DurationMinutes int                `json:"durationMinutes" gorm:"not null;default:60"`
	Type            ConsultationType   `json:"type" gorm:"type:varchar(20);not null;default:'follow_up'"`
	Status          ConsultationStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled'"`
	Notes           string             `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt     `json:"-" gorm:"index"`

	Patient *Patient `json:"-" gorm:"foreignKey:PatientID"`
}
