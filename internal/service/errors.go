package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already registered")
	ErrAccountExists      = errors.New("account already registered")
	ErrNotRegistered      = errors.New("no account is linked to this identity")
	ErrForbidden          = errors.New("not allowed to access this resource")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrInviteExists       = errors.New("a pending invite already exists for this email")
	ErrInviteNotFound     = errors.New("invite not found")
)
