package db

import (
	"context"

	"gorm.io/gorm"

	"vaultd/internal/domain"
)

type AccessLogRepository struct {
	db *gorm.DB
}

func NewAccessLogRepository(db *gorm.DB) *AccessLogRepository {
	return &AccessLogRepository{db: db}
}

func (r *AccessLogRepository) Append(ctx context.Context, entry domain.AccessLog) (domain.AccessLog, error) {
	if r.db == nil {
		return domain.AccessLog{}, errDBUnavailable
	}
	model := logToModel(entry)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AccessLog{}, err
	}
	entry.ID = model.ID
	return entry, nil
}

func (r *AccessLogRepository) SetLedgerTx(ctx context.Context, id int64, txID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Model(&AccessLogModel{}).
		Where("id = ?", id).
		Update("ledger_tx_id", txID).Error
}

func (r *AccessLogRepository) ListByRequest(ctx context.Context, requestID int64) ([]domain.AccessLog, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AccessLogModel
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("accessed_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return logsFromModels(models), nil
}

func (r *AccessLogRepository) ListByUser(ctx context.Context, userID int64) ([]domain.AccessLog, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AccessLogModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("accessed_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return logsFromModels(models), nil
}

func logToModel(entry domain.AccessLog) AccessLogModel {
	return AccessLogModel{
		UserID:     entry.UserID,
		FileID:     entry.FileID,
		RequestID:  entry.RequestID,
		AccessType: string(entry.AccessType),
		AccessedAt: entry.AccessedAt,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		LedgerTxID: entry.LedgerTxID,
	}
}

func logsFromModels(models []AccessLogModel) []domain.AccessLog {
	out := make([]domain.AccessLog, 0, len(models))
	for _, m := range models {
		out = append(out, domain.AccessLog{
			ID:         m.ID,
			UserID:     m.UserID,
			FileID:     m.FileID,
			RequestID:  m.RequestID,
			AccessType: domain.AccessType(m.AccessType),
			AccessedAt: m.AccessedAt,
			IPAddress:  m.IPAddress,
			UserAgent:  m.UserAgent,
			LedgerTxID: m.LedgerTxID,
		})
	}
	return out
}
