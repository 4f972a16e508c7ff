package db

import (
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vaultd/internal/domain"
)

var errDBUnavailable = errors.New("database unavailable")

func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates the schema. The partial unique index is the
// hard backstop behind the duplicate-request check: at most one pending or
// approved request per (user, file) can ever exist, no matter how the
// application races.
func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return errDBUnavailable
	}
	if err := gdb.AutoMigrate(
		&UserModel{},
		&DataFileModel{},
		&FileModificationModel{},
		&AccessRequestModel{},
		&AccessLogModel{},
		&OTPTokenModel{},
		&LedgerAttemptModel{},
	); err != nil {
		return err
	}
	return gdb.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_access_requests_active
		 ON access_requests (user_id, file_id)
		 WHERE status IN ('pending', 'approved')`,
	).Error
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
