package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationType selects the message template
type NotificationType string

const (
	NotificationWelcome               NotificationType = "welcome"
	NotificationConsultationReminder  NotificationType = "consultation-reminder"
	NotificationConsultationScheduled NotificationType = "consultation-scheduled"
	NotificationDietPlanCreated       NotificationType = "diet-plan-created"
	NotificationPasswordReset         NotificationType = "password-reset"
	NotificationPatientInvite         NotificationType = "patient-invite"
	NotificationGeneric               NotificationType = "generic"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationWelcome, NotificationConsultationReminder, NotificationConsultationScheduled,
		NotificationDietPlanCreated, NotificationPasswordReset, NotificationPatientInvite, NotificationGeneric:
		return true
	}
	return false
}

// Channel is the delivery mechanism of a notification
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// NotificationStatus is the delivery state. Transitions only go from pending to
// one of the terminal states.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationPending, NotificationSent, NotificationFailed, NotificationCancelled:
		return true
	}
	return false
}

// Priority of a notification
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// QueuePriority maps the priority to the queue ordering value, lower runs first
func (p Priority) QueuePriority() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 4
	default:
		return 3
	}
}

// DefaultNotificationTTL is how long a notification record is kept when no
// explicit expiry is given
const DefaultNotificationTTL = 30 * 24 * time.Hour

type Notification struct {
	ID            uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID        uuid.UUID          `json:"userId" gorm:"type:uuid;not null;index"`
	Type          NotificationType   `json:"type" gorm:"type:varchar(40);not null"`
	Channel       Channel            `json:"channel" gorm:"type:varchar(10);not null;default:'email'"`
	Status        NotificationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Title         string             `json:"title" gorm:"not null"`
	Message       string             `json:"message" gorm:"type:text;not null"`
	Data          datatypes.JSON     `json:"data,omitempty"`
	ScheduledFor  time.Time          `json:"scheduledFor" gorm:"not null;index"`
	SentAt        *time.Time         `json:"sentAt"`
	FailureReason string             `json:"failureReason,omitempty"`
	RetryCount    int                `json:"retryCount" gorm:"not null;default:0"`
	MaxRetries    int                `json:"maxRetries" gorm:"not null"`
	Priority      Priority           `json:"priority" gorm:"type:varchar(10);not null;default:'normal'"`
	ExpiresAt     time.Time          `json:"expiresAt" gorm:"not null;index"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`

	// Delivery claim held by the worker currently processing the notification
	ClaimToken *uuid.UUID `json:"-" gorm:"type:uuid"`
	ClaimedAt  *time.Time `json:"-"`
}

// IsExpired reports whether the notification is past its time-to-live
func (n *Notification) IsExpired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}

// CanRetry reports whether another delivery attempt is allowed
func (n *Notification) CanRetry() bool {
	return n.RetryCount < n.MaxRetries
}
