package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
)

// InviteService links patient records to patient accounts through single-use
// invite tokens
type InviteService struct {
	invites  repository.InviteRepository
	patients repository.PatientRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewInviteService(invites repository.InviteRepository, patients repository.PatientRepository, users repository.UserRepository, notifier Notifier, logger *slog.Logger) *InviteService {
	return &InviteService{
		invites:  invites,
		patients: patients,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for invite expiry
func (s *InviteService) WithClock(now func() time.Time) *InviteService {
	s.now = now
	return s
}

type InviteInput struct {
	PatientID string `json:"patientId" validate:"required,uuid"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// InviteResult carries the raw token. It is only ever returned here; the
// store keeps its hash.
type InviteResult struct {
	Invite *domain.PatientInvite
	Token  string
}

func (s *InviteService) Create(ctx context.Context, actor Actor, input InviteInput) (*InviteResult, error) {
	if _, err := actor.writeScope(); err != nil {
		return nil, err
	}
	input.Email = normalizeEmail(input.Email)

	verr := validateStruct(input)
	patient := ownedPatient(ctx, s.patients, actor, verr, input.PatientID)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	email := input.Email
	if email == "" {
		email = normalizeEmail(patient.Email)
	}
	if email == "" {
		return nil, domain.NewValidationError("email", "is required when the patient has no email")
	}
	if patient.UserID != nil {
		return nil, domain.NewValidationError("patientId", "is already linked to an account")
	}

	now := s.now()
	if _, err := s.invites.FindPending(ctx, actor.UserID, email, now); err == nil {
		return nil, ErrInviteExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	token, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	invite := &domain.PatientInvite{
		ID:             uuid.New(),
		NutritionistID: actor.UserID,
		PatientID:      patient.ID,
		Email:          email,
		TokenHash:      hash,
		Status:         domain.InvitePending,
		ExpiresAt:      now.Add(domain.InviteExpiryDuration),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, err
	}

	s.notifyInvitee(ctx, actor, email, token)
	return &InviteResult{Invite: invite, Token: token}, nil
}

func (s *InviteService) notifyInvitee(ctx context.Context, actor Actor, email, token string) {
	invitee, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return
	}

	data := map[string]interface{}{}
	if nutritionist, err := s.users.GetByID(ctx, actor.UserID); err == nil {
		data["nutritionistName"] = nutritionist.Name
	}
	notify(ctx, s.notifier, s.logger, notification.CreateRequest{
		UserID:   invitee.ID,
		Type:     domain.NotificationPatientInvite,
		Title:    "You have been invited",
		Message:  "Your nutritionist invited you to follow your plan on Nutrition Practice.",
		Priority: domain.PriorityHigh,
		Data:     data,
		Secret:   token,
	})
}

func (s *InviteService) List(ctx context.Context, actor Actor, page repository.Page) ([]*domain.PatientInvite, int64, error) {
	if _, err := actor.writeScope(); err != nil {
		return nil, 0, err
	}
	return s.invites.ListByNutritionist(ctx, actor.UserID, page)
}

func (s *InviteService) Revoke(ctx context.Context, actor Actor, id uuid.UUID) (*domain.PatientInvite, error) {
	invite, err := s.invites.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	if invite.NutritionistID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrInviteNotFound
	}
	if invite.Status != domain.InvitePending {
		return nil, domain.ErrInviteNotPending
	}

	invite.Status = domain.InviteRevoked
	if err := s.invites.Update(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

// Accept links the invited patient record to the acting patient account
func (s *InviteService) Accept(ctx context.Context, actor Actor, token string) (*domain.PatientInvite, error) {
	if token == "" {
		return nil, domain.NewValidationError("token", "is required")
	}

	invite, err := s.invites.GetByTokenHash(ctx, auth.HashOpaqueToken(token))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}
	if invite.Status != domain.InvitePending {
		return nil, domain.ErrInviteNotPending
	}

	now := s.now()
	if !now.Before(invite.ExpiresAt) {
		invite.Status = domain.InviteExpired
		if err := s.invites.Update(ctx, invite); err != nil {
			s.logger.WarnContext(ctx, "failed to mark invite expired",
				slog.String("invite_id", invite.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, domain.ErrInviteExpired
	}

	if err := s.patients.LinkUser(ctx, invite.PatientID, actor.UserID); err != nil {
		return nil, err
	}

	invite.Status = domain.InviteAccepted
	invite.AcceptedAt = &now
	acceptedBy := actor.UserID
	invite.AcceptedBy = &acceptedBy
	if err := s.invites.Update(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}
