package repository

import (
	"context"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/google/uuid"
)

// Page selects a window of a listing. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Scope restricts record access to an owner. Zero values mean unrestricted.
type Scope struct {
	// NutritionistID limits records to those owned by a nutritionist
	NutritionistID uuid.UUID
	// PatientUserID limits records to patients linked to a patient account
	PatientUserID uuid.UUID
}

// RecordFilter narrows practice record listings
type RecordFilter struct {
	PatientID uuid.UUID
	Status    string
	From      *time.Time
	To        *time.Time
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByExternalSubjectID(ctx context.Context, subject string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, role domain.Role, page Page) ([]*domain.User, int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status domain.NotificationStatus, page Page) ([]*domain.Notification, int64, error)

	// Claim takes the delivery claim on a pending notification. It returns false
	// when the notification is no longer pending or another worker holds a
	// live claim.
	Claim(ctx context.Context, id, token uuid.UUID, now time.Time, lease time.Duration) (bool, error)
	// The Mark* transitions only apply while the caller still holds the claim
	MarkSent(ctx context.Context, id, token uuid.UUID, sentAt time.Time) (bool, error)
	MarkRetry(ctx context.Context, id, token uuid.UUID, reason string) (bool, error)
	MarkFailed(ctx context.Context, id, token uuid.UUID, reason string) (bool, error)
	MarkCancelled(ctx context.Context, id, token uuid.UUID, reason string) (bool, error)
	// Cancel moves an unclaimed pending notification to cancelled
	Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error)

	ListStalePending(ctx context.Context, scheduledBefore time.Time, limit int) ([]*domain.Notification, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[domain.NotificationStatus]int64, error)
}

// RecordRepository is the shared contract of ownership-scoped practice records
type RecordRepository[T any] interface {
	Create(ctx context.Context, record *T) error
	GetByID(ctx context.Context, id uuid.UUID, scope Scope) (*T, error)
	List(ctx context.Context, scope Scope, filter RecordFilter, page Page) ([]*T, int64, error)
	Count(ctx context.Context, scope Scope, filter RecordFilter) (int64, error)
	Update(ctx context.Context, record *T) error
	Delete(ctx context.Context, id uuid.UUID, scope Scope) error
}

type PatientRepository interface {
	RecordRepository[domain.Patient]
	LinkUser(ctx context.Context, patientID, userID uuid.UUID) error
}

type AssessmentRepository = RecordRepository[domain.NutritionalAssessment]
type DietPlanRepository = RecordRepository[domain.DietPlan]
type ConsultationRepository = RecordRepository[domain.Consultation]

type BlogRepository interface {
	Create(ctx context.Context, post *domain.BlogPost) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BlogPost, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*domain.BlogPost, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, publishedOnly bool, authorID uuid.UUID, page Page) ([]*domain.BlogPost, int64, error)
	Update(ctx context.Context, post *domain.BlogPost) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type InviteRepository interface {
	Create(ctx context.Context, invite *domain.PatientInvite) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PatientInvite, error)
	GetByTokenHash(ctx context.Context, hash string) (*domain.PatientInvite, error)
	FindPending(ctx context.Context, nutritionistID uuid.UUID, email string, now time.Time) (*domain.PatientInvite, error)
	ListByNutritionist(ctx context.Context, nutritionistID uuid.UUID, page Page) ([]*domain.PatientInvite, int64, error)
	Update(ctx context.Context, invite *domain.PatientInvite) error
}

// AuditFilter narrows audit log listings
type AuditFilter struct {
	UserID   uuid.UUID
	Resource string
	Action   string
}

type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditFilter, page Page) ([]*domain.AuditLogEntry, int64, error)
}

type Repositories struct {
	User         UserRepository
	Notification NotificationRepository
	Patient      PatientRepository
	Assessment   AssessmentRepository
	DietPlan     DietPlanRepository
	Consultation ConsultationRepository
	Blog         BlogRepository
	Invite       InviteRepository
	Audit        AuditRepository
}
