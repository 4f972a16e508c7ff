package domain

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrDuplicateRequest       = errors.New("duplicate access request")
	ErrFileUnavailable        = errors.New("file unavailable")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidCode            = errors.New("invalid one-time code")
	ErrNotConfigured          = errors.New("totp not configured")
	ErrInvalidFormat          = errors.New("invalid code format")
	ErrLedgerUnavailable      = errors.New("ledger unavailable")
	ErrPersistence            = errors.New("persistence failure")
	ErrRateLimited            = errors.New("too many attempts")
)
