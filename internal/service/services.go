package service

import (
	"log/slog"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/repository"
)

type Services struct {
	Auth         *AuthService
	User         *UserService
	Patient      *PatientService
	Assessment   *AssessmentService
	DietPlan     *DietPlanService
	Consultation *ConsultationService
	Blog         *BlogService
	Invite       *InviteService
	Audit        *AuditService
	Metrics      *MetricsService
	Notification *NotificationService
}

// Dependencies are the collaborators services share besides the repositories
type Dependencies struct {
	Issuer   *auth.TokenIssuer
	Resets   auth.ResetTokenStore
	Notifier Notifier
	Config   *config.Config
	Logger   *slog.Logger
}

func NewServices(repos *repository.Repositories, deps Dependencies) *Services {
	return &Services{
		Auth:         NewAuthService(repos.User, deps.Issuer, deps.Resets, deps.Notifier, deps.Config, deps.Logger),
		User:         NewUserService(repos.User),
		Patient:      NewPatientService(repos.Patient),
		Assessment:   NewAssessmentService(repos.Assessment, repos.Patient),
		DietPlan:     NewDietPlanService(repos.DietPlan, repos.Patient, deps.Notifier, deps.Logger),
		Consultation: NewConsultationService(repos.Consultation, repos.Patient, deps.Notifier, deps.Logger),
		Blog:         NewBlogService(repos.Blog),
		Invite:       NewInviteService(repos.Invite, repos.Patient, repos.User, deps.Notifier, deps.Logger),
		Audit:        NewAuditService(repos.Audit),
		Metrics:      NewMetricsService(repos.Patient, repos.DietPlan, repos.Consultation, repos.Notification),
		Notification: NewNotificationService(repos.Notification, repos.Patient, deps.Notifier),
	}
}
