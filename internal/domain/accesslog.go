package domain

import (
	"context"
	"time"
)

type AccessType string

const (
	AccessView     AccessType = "view"
	AccessDownload AccessType = "download"
)

// AccessLog is one immutable row per access event. Rows are only ever
// appended; there is no update or delete path.
type AccessLog struct {
	ID         int64
	UserID     int64
	FileID     string
	RequestID  *int64
	AccessType AccessType
	AccessedAt time.Time

	IPAddress string
	UserAgent string

	LedgerTxID string
}

// ClientMeta carries the request-scoped metadata captured on every access.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

type AccessLogRepository interface {
	Append(ctx context.Context, entry AccessLog) (AccessLog, error)
	SetLedgerTx(ctx context.Context, id int64, txID string) error
	ListByRequest(ctx context.Context, requestID int64) ([]AccessLog, error)
	ListByUser(ctx context.Context, userID int64) ([]AccessLog, error)
}
