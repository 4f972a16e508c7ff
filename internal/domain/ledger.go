package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Ledger is the opaque append-only transaction log reachable over RPC.
// It mirrors state transitions for tamper-evident audit and is never
// authoritative for application state.
type Ledger interface {
	Submit(ctx context.Context, op string, args map[string]any) (LedgerReceipt, error)
	Query(ctx context.Context, op string, args map[string]any) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// LedgerMirror wraps a Ledger with best-effort semantics: one attempt,
// bounded timeout, failures recorded and absorbed. Implementations must not
// fail core flows on network or provider errors; callers inspect the
// receipt's TxID, which is empty when the mirror did not land.
type LedgerMirror interface {
	Mirror(ctx context.Context, op string, args map[string]any) LedgerReceipt
}

type LedgerReceipt struct {
	Op          string
	Status      string
	ErrorCode   string
	TxID        string
	BlockNumber int64
}

func (r LedgerReceipt) Mirrored() bool {
	return r.Status == MirrorStatusMirrored
}

const (
	MirrorStatusMirrored = "mirrored"
	MirrorStatusFailed   = "failed"
	MirrorStatusSkipped  = "skipped"
)

const (
	MirrorErrorNetwork     = "NETWORK"
	MirrorErrorTimeout     = "TIMEOUT"
	MirrorErrorBadConfig   = "BAD_CONFIG"
	MirrorErrorProvider    = "PROVIDER_ERROR"
	MirrorErrorPersistence = "PERSISTENCE"
)

// Ledger operation names, matching the vault contract's function surface.
const (
	LedgerOpCreateRequest  = "createAccessRequest"
	LedgerOpProcessRequest = "processAccessRequest"
	LedgerOpLogAccess      = "logDataAccess"
	LedgerOpRecordUpload   = "recordDataUpload"
)

// LedgerAttempt is the durable trace of one mirror attempt, successful or
// not. Appended for every attempt so that gaps in the ledger are visible
// locally.
type LedgerAttempt struct {
	ID          int64
	Op          string
	Status      string
	ErrorCode   string
	TxID        string
	BlockNumber int64
	ArgsJSON    json.RawMessage
	CreatedAt   time.Time
}

type LedgerAttemptRepository interface {
	Append(ctx context.Context, attempt LedgerAttempt) error
	ListByOp(ctx context.Context, op string, limit int) ([]LedgerAttempt, error)
}
