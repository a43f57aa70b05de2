package postgres

import (
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the database and migrates the schema
func NewConnection(databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// LogLevel returns the gorm log level used for an environment
func LogLevel(environment string) logger.LogLevel {
	if environment == "development" {
		return logger.Info
	}
	return logger.Warn
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Notification{},
		&domain.Patient{},
		&domain.NutritionalAssessment{},
		&domain.DietPlan{},
		&domain.Consultation{},
		&domain.BlogPost{},
		&domain.PatientInvite{},
		&domain.AuditLogEntry{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:         NewUserRepository(db),
		Notification: NewNotificationRepository(db),
		Patient:      NewPatientRepository(db),
		Assessment:   NewAssessmentRepository(db),
		DietPlan:     NewDietPlanRepository(db),
		Consultation: NewConsultationRepository(db),
		Blog:         NewBlogRepository(db),
		Invite:       NewInviteRepository(db),
		Audit:        NewAuditRepository(db),
	}
}
