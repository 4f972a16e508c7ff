package domain

import (
	"context"
	"strings"
	"time"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusAccessed RequestStatus = "accessed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusAccessed:
		return true
	}
	return false
}

// Active reports whether a request in this status still blocks a new
// request for the same (user, file) pair.
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// AccessRequest is the authoritative record of one user's attempt to obtain
// a file. It is created once, mutated only through the transition methods
// below, and never deleted.
type AccessRequest struct {
	ID     int64
	UserID int64
	FileID string

	Reason      string
	Status      RequestStatus
	RequestedAt time.Time

	ProcessedBy *int64
	ProcessedAt *time.Time
	AdminNotes  string

	OTPSent         bool
	AccessGrantedAt *time.Time

	// Ledger correlation, best-effort. Empty when the mirror failed or is
	// disabled; never required for the request to progress.
	RequestTxID string
	ProcessTxID string
	AccessTxID  string
}

// NewAccessRequest validates creation input and returns a pending request.
// The duplicate-pair check is the caller's responsibility; it needs the
// repository and must be serialized there.
func NewAccessRequest(userID int64, fileID, reason string, now time.Time) (AccessRequest, error) {
	if userID == 0 || fileID == "" {
		return AccessRequest{}, ErrValidation
	}
	if strings.TrimSpace(reason) == "" {
		return AccessRequest{}, ErrValidation
	}
	return AccessRequest{
		UserID:      userID,
		FileID:      fileID,
		Reason:      reason,
		Status:      StatusPending,
		RequestedAt: now.UTC(),
	}, nil
}

// Approve transitions pending -> approved, stamping the admin fields exactly
// once. Any other starting status fails and leaves the receiver untouched.
func (r AccessRequest) Approve(adminID int64, notes string, now time.Time) (AccessRequest, error) {
	if r.Status != StatusPending {
		return r, ErrInvalidStateTransition
	}
	at := now.UTC()
	r.Status = StatusApproved
	r.ProcessedBy = &adminID
	r.ProcessedAt = &at
	r.AdminNotes = notes
	return r, nil
}

// Reject transitions pending -> rejected. Rejected is terminal.
func (r AccessRequest) Reject(adminID int64, notes string, now time.Time) (AccessRequest, error) {
	if r.Status != StatusPending {
		return r, ErrInvalidStateTransition
	}
	at := now.UTC()
	r.Status = StatusRejected
	r.ProcessedBy = &adminID
	r.ProcessedAt = &at
	r.AdminNotes = notes
	return r, nil
}

// MarkAccessed transitions approved -> accessed after a successful TOTP
// verification. Accessed is terminal; downloads do not change status again.
func (r AccessRequest) MarkAccessed(now time.Time) (AccessRequest, error) {
	if r.Status != StatusApproved {
		return r, ErrInvalidStateTransition
	}
	at := now.UTC()
	r.Status = StatusAccessed
	r.AccessGrantedAt = &at
	return r, nil
}

type AccessRequestRepository interface {
	// CreateIfNoActive inserts the request unless an active (pending or
	// approved) request already exists for the same (user, file) pair, in
	// which case it returns ErrDuplicateRequest. The check and insert are
	// atomic with respect to concurrent callers.
	CreateIfNoActive(ctx context.Context, req AccessRequest) (AccessRequest, error)

	GetByID(ctx context.Context, id int64) (AccessRequest, error)

	// UpdateTransition persists req, but only if the stored row is still in
	// fromStatus; otherwise it returns ErrInvalidStateTransition. This is the
	// serialization point for concurrent approve/reject/access calls.
	UpdateTransition(ctx context.Context, req AccessRequest, fromStatus RequestStatus) error

	// SetLedgerTx records a mirror transaction id on one of the three
	// correlation columns without touching lifecycle fields.
	SetLedgerTx(ctx context.Context, id int64, field LedgerTxField, txID string) error

	ListByUser(ctx context.Context, userID int64) ([]AccessRequest, error)
	ListByStatus(ctx context.Context, status RequestStatus) ([]AccessRequest, error)
	CountByUserAndStatus(ctx context.Context, userID int64, status RequestStatus) (int64, error)
	CountByStatus(ctx context.Context, status RequestStatus) (int64, error)
}

// ReleaseStore commits the approved -> accessed transition together with the
// view audit row: neither lands without the other. A request that already
// left fromStatus yields ErrInvalidStateTransition; a failed audit write
// yields ErrPersistence and leaves the request untouched, so the caller may
// retry.
type ReleaseStore interface {
	CommitRelease(ctx context.Context, req AccessRequest, fromStatus RequestStatus, entry AccessLog) (AccessLog, error)
}

type LedgerTxField string

const (
	TxFieldRequest LedgerTxField = "request_tx_id"
	TxFieldProcess LedgerTxField = "process_tx_id"
	TxFieldAccess  LedgerTxField = "access_tx_id"
)
