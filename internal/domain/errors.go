package domain

import "errors"

// Lookup and uniqueness errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Account errors
var (
	ErrInvalidRole             = errors.New("invalid role")
	ErrMissingCredentialSource = errors.New("account needs a password or a linked identity")
	ErrAccountDisabled         = errors.New("account is deactivated")
)

// Notification errors
var (
	ErrInvalidChannel         = errors.New("invalid notification channel")
	ErrInvalidPriority        = errors.New("invalid notification priority")
	ErrInvalidType            = errors.New("invalid notification type")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrNotificationNotPending = errors.New("notification is not pending")
)

// Invite errors
var (
	ErrInviteExpired    = errors.New("invite has expired")
	ErrInviteNotPending = errors.New("invite is no longer pending")
)
