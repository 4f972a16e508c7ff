package domain

import (
	"context"
	"time"
)

type FileStatus string

const (
	FileActive   FileStatus = "active"
	FileArchived FileStatus = "archived"
	FileDeleted  FileStatus = "deleted"
)

// DataFile is the vault's view of an uploaded file. Storage and streaming
// live behind the presentation layer; the core only needs identity, status
// and enough metadata for listings and audit rows.
type DataFile struct {
	DataID      string
	Title       string
	Description string
	FileName    string
	ContentType string
	SizeBytes   int64
	UploadedBy  int64
	UploadedAt  time.Time
	UpdatedAt   time.Time
	Status      FileStatus

	LedgerTxID string
}

func (f DataFile) IsActive() bool {
	return f.Status == FileActive
}

type ModificationAction string

const (
	ModificationUpload ModificationAction = "upload"
	ModificationModify ModificationAction = "modify"
	ModificationDelete ModificationAction = "delete"
)

// FileModification is one append-only row in the catalog change history.
// Every catalog mutation leaves one behind; rows are never updated or
// removed.
type FileModification struct {
	ID          int64
	FileID      string
	Action      ModificationAction
	PerformedBy int64
	Details     string
	LedgerTxID  string
	CreatedAt   time.Time
}

type FileRepository interface {
	// GetActive returns the file only when its status is active; an archived
	// or deleted file yields ErrNotFound.
	GetActive(ctx context.Context, dataID string) (DataFile, error)
	GetByID(ctx context.Context, dataID string) (DataFile, error)
	Create(ctx context.Context, file DataFile) (DataFile, error)
	// ApplyChange persists the mutation and its history row as one unit,
	// conditional on the file still being in fromStatus. A file that moved
	// away concurrently yields ErrNotFound and no history row.
	ApplyChange(ctx context.Context, file DataFile, fromStatus FileStatus, entry FileModification) (FileModification, error)
	SetLedgerTx(ctx context.Context, dataID string, txID string) error
	ListActive(ctx context.Context) ([]DataFile, error)
	CountActive(ctx context.Context) (int64, error)
}

type FileModificationRepository interface {
	Append(ctx context.Context, entry FileModification) (FileModification, error)
	ListByFile(ctx context.Context, fileID string) ([]FileModification, error)
}
