package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users    repository.UserRepository
	issuer   *auth.TokenIssuer
	resets   auth.ResetTokenStore
	notifier Notifier
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, issuer *auth.TokenIssuer, resets auth.ResetTokenStore, notifier Notifier, cfg *config.Config, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		issuer:   issuer,
		resets:   resets,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"required,oneof=patient nutritionist student"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type HybridRegisterInput struct {
	Name string `json:"name" validate:"required,max=120"`
	Role string `json:"role" validate:"required,oneof=patient nutritionist student"`
}

// AuthResult is a user together with a freshly issued session token
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	verr := validateStruct(input)
	checkPassword(verr, "password", input.Password, s.cfg.PasswordMinLength, s.cfg.PasswordMaxLength)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         domain.Role(input.Role),
		IsActive:     true,
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, user)
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validateStruct(input).Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.HasLocalCredential() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	s.touchLastLogin(ctx, user)
	return s.issue(user)
}

// ForgotPassword issues a reset token and mails it when the account exists.
// The outcome is the same whether or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.NewValidationError("email", "is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.resets.Issue(ctx, user.ID.String())
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	notify(ctx, s.notifier, s.logger, notification.CreateRequest{
		UserID:   user.ID,
		Type:     domain.NotificationPasswordReset,
		Title:    "Password reset",
		Message:  "We received a request to reset your password.",
		Priority: domain.PriorityUrgent,
		Secret:   token,
	})
	return nil
}

// ResetPassword consumes a reset token and sets the new password. A token
// works once.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	verr := &domain.ValidationError{}
	if token == "" {
		verr.Add("token", "is required")
	}
	checkPassword(verr, "password", newPassword, s.cfg.PasswordMinLength, s.cfg.PasswordMaxLength)
	if err := verr.Err(); err != nil {
		return err
	}

	subject, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return auth.ErrInvalidCredential
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return auth.ErrInvalidCredential
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	return s.users.Update(ctx, user)
}

// Profile returns the local user behind a principal
func (s *AuthService) Profile(ctx context.Context, p *auth.Principal) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if p.HasLocalUser() {
		user, err = s.users.GetByID(ctx, p.UserID)
	} else {
		user, err = s.users.GetByExternalSubjectID(ctx, p.SubjectID)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	return user, err
}

// FirebaseLogin finds the user linked to a provider identity. An existing
// account with the same verified email is linked; otherwise a new account is
// created.
func (s *AuthService) FirebaseLogin(ctx context.Context, p *auth.Principal) (*domain.User, error) {
	user, err := s.users.GetByExternalSubjectID(ctx, p.SubjectID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		user, err = s.linkOrCreate(ctx, p, p.DisplayName, p.Role)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	s.touchLastLogin(ctx, user)
	return user, nil
}

// HybridRegister creates a local account for a provider identity and returns a
// local session token for it
func (s *AuthService) HybridRegister(ctx context.Context, p *auth.Principal, input HybridRegisterInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	verr := validateStruct(input)
	if p.Email == "" {
		verr.Add("email", errNoProviderEmail)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByExternalSubjectID(ctx, p.SubjectID); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err := s.linkOrCreate(ctx, p, input.Name, domain.Role(input.Role))
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	return s.issue(user)
}

// HybridLogin exchanges a provider token for a local session token
func (s *AuthService) HybridLogin(ctx context.Context, p *auth.Principal) (*AuthResult, error) {
	user, err := s.users.GetByExternalSubjectID(ctx, p.SubjectID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	s.touchLastLogin(ctx, user)
	return s.issue(user)
}

// Refresh issues a new session token carrying the user's current role
func (s *AuthService) Refresh(ctx context.Context, p *auth.Principal) (*AuthResult, error) {
	user, err := s.Profile(ctx, p)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountDisabled
	}
	return s.issue(user)
}

const errNoProviderEmail = "identity provider did not supply an email address"

func (s *AuthService) linkOrCreate(ctx context.Context, p *auth.Principal, name string, role domain.Role) (*domain.User, error) {
	subject := p.SubjectID
	email := normalizeEmail(p.Email)
	// Email is unique, so an account without one would collide with the next
	if email == "" {
		return nil, domain.NewValidationError("email", errNoProviderEmail)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsFederated() || !p.EmailVerified {
			return nil, ErrEmailExists
		}
		existing.ExternalSubjectID = &subject
		existing.ExternalVerified = true
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if !role.IsValid() || role == domain.RoleAdmin {
		role = domain.RolePatient
	}
	if name == "" {
		name = displayNameFromEmail(email)
	}

	user := &domain.User{
		ID:                uuid.New(),
		Name:              name,
		Email:             email,
		Role:              role,
		ExternalSubjectID: &subject,
		ExternalVerified:  p.EmailVerified,
		IsActive:          true,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}

	s.sendWelcome(ctx, user)
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, user *domain.User) error {
	err := s.users.Create(ctx, user)
	if errors.Is(err, domain.ErrConflict) {
		return ErrEmailExists
	}
	return err
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.issuer.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, user *domain.User) {
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	user.LastLogin = &now
}

func (s *AuthService) sendWelcome(ctx context.Context, user *domain.User) {
	if user.Email == "" {
		return
	}
	notify(ctx, s.notifier, s.logger, notification.CreateRequest{
		UserID:  user.ID,
		Type:    domain.NotificationWelcome,
		Title:   "Welcome",
		Message: "Your Nutrition Practice account has been created.",
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayNameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return "user"
}
