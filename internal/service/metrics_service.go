package service

import (
	"context"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// MetricsSummary is the practice dashboard
type MetricsSummary struct {
	Patients              int64                               `json:"patients"`
	ActiveDietPlans       int64                               `json:"activeDietPlans"`
	UpcomingConsultations int64                               `json:"upcomingConsultations"`
	Notifications         map[domain.NotificationStatus]int64 `json:"notifications"`
}

type MetricsService struct {
	patients      repository.PatientRepository
	plans         repository.DietPlanRepository
	consultations repository.ConsultationRepository
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewMetricsService(patients repository.PatientRepository, plans repository.DietPlanRepository, consultations repository.ConsultationRepository, notifications repository.NotificationRepository) *MetricsService {
	return &MetricsService{
		patients:      patients,
		plans:         plans,
		consultations: consultations,
		notifications: notifications,
		now:           time.Now,
	}
}

// Summary counts the records of the acting nutritionist, or of the whole
// practice for admins
func (s *MetricsService) Summary(ctx context.Context, actor Actor) (*MetricsSummary, error) {
	var scope repository.Scope
	notificationsFor := uuid.Nil
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleNutritionist:
		scope.NutritionistID = actor.UserID
		notificationsFor = actor.UserID
	default:
		return nil, ErrForbidden
	}

	now := s.now()
	summary := &MetricsSummary{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary.Patients, err = s.patients.Count(ctx, scope, repository.RecordFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		summary.ActiveDietPlans, err = s.plans.Count(ctx, scope, repository.RecordFilter{Status: string(domain.DietPlanActive)})
		return err
	})
	g.Go(func() error {
		var err error
		summary.UpcomingConsultations, err = s.consultations.Count(ctx, scope, repository.RecordFilter{
			Status: string(domain.ConsultationScheduled),
			From:   &now,
		})
		return err
	})
	g.Go(func() error {
		var err error
		summary.Notifications, err = s.notifications.CountByStatus(ctx, notificationsFor)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}
