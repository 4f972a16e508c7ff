package db

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vaultd/internal/domain"
)

// Integration tests run only against a throwaway database:
//
//	POSTGRES_DSN_TEST="host=localhost user=vaultd dbname=vaultd_test sslmode=disable" go test ./internal/infra/db/

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	lockTestDB(t, gdb)
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	truncate(t, gdb)
	return gdb
}

func lockTestDB(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("open db conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_lock(424212345)"); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(424212345)")
		_ = conn.Close()
	})
}

func truncate(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	for _, table := range []string{
		"data_access_logs", "otp_tokens", "ledger_attempts",
		"data_modification_log", "access_requests", "data_files", "users",
	} {
		if err := gdb.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE").Error; err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}

func seedRequest(t *testing.T, repo *AccessRequestRepository, userID int64, fileID string) domain.AccessRequest {
	t.Helper()
	req, err := domain.NewAccessRequest(userID, fileID, "integration", time.Now())
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	created, err := repo.CreateIfNoActive(context.Background(), req)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return created
}

func TestRequestRepoDuplicateGuard(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewAccessRequestRepository(gdb)
	ctx := context.Background()

	first := seedRequest(t, repo, 1, "DATA-AAAA0000BBBB")

	dup, _ := domain.NewAccessRequest(1, "DATA-AAAA0000BBBB", "again", time.Now())
	if _, err := repo.CreateIfNoActive(ctx, dup); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}

	// Another user, same file: no conflict.
	other, _ := domain.NewAccessRequest(2, "DATA-AAAA0000BBBB", "mine", time.Now())
	if _, err := repo.CreateIfNoActive(ctx, other); err != nil {
		t.Fatalf("other user blocked: %v", err)
	}

	// Reject the first and the pair frees up.
	rejected, err := first.Reject(9, "no", time.Now())
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := repo.UpdateTransition(ctx, rejected, domain.StatusPending); err != nil {
		t.Fatalf("persist reject: %v", err)
	}
	retry, _ := domain.NewAccessRequest(1, "DATA-AAAA0000BBBB", "retry", time.Now())
	if _, err := repo.CreateIfNoActive(ctx, retry); err != nil {
		t.Fatalf("retry after reject blocked: %v", err)
	}
}

func TestRequestRepoConditionalTransition(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewAccessRequestRepository(gdb)
	ctx := context.Background()

	created := seedRequest(t, repo, 3, "DATA-CCCC1111DDDD")

	approved, err := created.Approve(9, "ok", time.Now())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := repo.UpdateTransition(ctx, approved, domain.StatusPending); err != nil {
		t.Fatalf("persist approve: %v", err)
	}

	// A second writer working from the stale pending copy loses.
	rejected, err := created.Reject(10, "late", time.Now())
	if err != nil {
		t.Fatalf("reject value: %v", err)
	}
	if err := repo.UpdateTransition(ctx, rejected, domain.StatusPending); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.StatusApproved || *stored.ProcessedBy != 9 {
		t.Fatalf("first decision lost: %+v", stored)
	}

	if err := repo.UpdateTransition(ctx, approved, domain.StatusPending); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected losing retry to fail, got %v", err)
	}
}

func TestRequestRepoLedgerTxColumns(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewAccessRequestRepository(gdb)
	ctx := context.Background()

	created := seedRequest(t, repo, 4, "DATA-EEEE2222FFFF")
	if err := repo.SetLedgerTx(ctx, created.ID, domain.TxFieldRequest, "0xabc"); err != nil {
		t.Fatalf("set tx: %v", err)
	}
	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.RequestTxID != "0xabc" || stored.ProcessTxID != "" {
		t.Fatalf("tx columns wrong: %+v", stored)
	}
}

func TestRequestRepoCommitRelease(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewAccessRequestRepository(gdb)
	logs := NewAccessLogRepository(gdb)
	ctx := context.Background()

	created := seedRequest(t, repo, 7, "DATA-FEED5678BEEF")
	approved, err := created.Approve(9, "ok", time.Now())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := repo.UpdateTransition(ctx, approved, domain.StatusPending); err != nil {
		t.Fatalf("persist approve: %v", err)
	}

	accessed, err := approved.MarkAccessed(time.Now())
	if err != nil {
		t.Fatalf("mark accessed: %v", err)
	}
	requestID := created.ID
	entry, err := repo.CommitRelease(ctx, accessed, domain.StatusApproved, domain.AccessLog{
		UserID:     7,
		FileID:     created.FileID,
		RequestID:  &requestID,
		AccessType: domain.AccessView,
		AccessedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("commit release: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected audit row id assigned")
	}

	stored, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.StatusAccessed {
		t.Fatalf("expected accessed, got %s", stored.Status)
	}
	rows, err := logs.ListByRequest(ctx, requestID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one view row, got %d", len(rows))
	}

	// A second commit from the stale approved copy loses and leaves no row.
	if _, err := repo.CommitRelease(ctx, accessed, domain.StatusApproved, domain.AccessLog{
		UserID:     7,
		FileID:     created.FileID,
		RequestID:  &requestID,
		AccessType: domain.AccessView,
		AccessedAt: time.Now().UTC(),
	}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	rows, _ = logs.ListByRequest(ctx, requestID)
	if len(rows) != 1 {
		t.Fatalf("losing commit must not append rows, got %d", len(rows))
	}
}

func TestFileRepoApplyChange(t *testing.T) {
	gdb := setupTestDB(t)
	files := NewFileRepository(gdb)
	mods := NewFileModificationRepository(gdb)
	ctx := context.Background()

	file, err := files.Create(ctx, domain.DataFile{
		Title:      "metrics dump",
		FileName:   "metrics.csv",
		UploadedBy: 9,
	})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	file.Title = "metrics dump v2"
	file.UpdatedAt = time.Now().UTC()
	entry, err := files.ApplyChange(ctx, file, domain.FileActive, domain.FileModification{
		FileID:      file.DataID,
		Action:      domain.ModificationModify,
		PerformedBy: 9,
		Details:     `Changed title from "metrics dump" to "metrics dump v2"`,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("apply change: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected history row id assigned")
	}

	file.Status = domain.FileDeleted
	if _, err := files.ApplyChange(ctx, file, domain.FileActive, domain.FileModification{
		FileID:      file.DataID,
		Action:      domain.ModificationDelete,
		PerformedBy: 9,
		Details:     "Deleted file: metrics dump v2",
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	// The row survives the soft delete but leaves the active catalog.
	if _, err := files.GetActive(ctx, file.DataID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted file out of active catalog, got %v", err)
	}
	stored, err := files.GetByID(ctx, file.DataID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if stored.Status != domain.FileDeleted || stored.Title != "metrics dump v2" {
		t.Fatalf("unexpected stored file %+v", stored)
	}

	// A stale writer expecting an active file loses and appends nothing.
	if _, err := files.ApplyChange(ctx, file, domain.FileActive, domain.FileModification{
		FileID: file.DataID,
		Action: domain.ModificationDelete,
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale change, got %v", err)
	}

	history, err := mods.ListByFile(ctx, file.DataID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
}

func TestOTPTokenRepoSingleUse(t *testing.T) {
	gdb := setupTestDB(t)
	repo := NewOTPTokenRepository(gdb)
	ctx := context.Background()

	token := domain.OTPToken{
		UserID:    5,
		Code:      "123456",
		Purpose:   domain.OTPPurposeDataAccess,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}
	if _, err := repo.Create(ctx, token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	used, err := repo.ConsumeLatest(ctx, 5, "123456", domain.OTPPurposeDataAccess, time.Now())
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if !used.Used || used.UsedAt == nil {
		t.Fatalf("token not marked used: %+v", used)
	}
	if _, err := repo.ConsumeLatest(ctx, 5, "123456", domain.OTPPurposeDataAccess, time.Now()); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
}

func TestAccessLogRepoAppendOnly(t *testing.T) {
	gdb := setupTestDB(t)
	requests := NewAccessRequestRepository(gdb)
	logs := NewAccessLogRepository(gdb)
	ctx := context.Background()

	created := seedRequest(t, requests, 6, "DATA-ABAB3434CDCD")
	requestID := created.ID

	entry, err := logs.Append(ctx, domain.AccessLog{
		UserID:     6,
		FileID:     created.FileID,
		RequestID:  &requestID,
		AccessType: domain.AccessView,
		AccessedAt: time.Now().UTC(),
		IPAddress:  "192.0.2.1",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := logs.SetLedgerTx(ctx, entry.ID, "0xlog"); err != nil {
		t.Fatalf("set tx: %v", err)
	}

	rows, err := logs.ListByRequest(ctx, requestID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].LedgerTxID != "0xlog" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}
