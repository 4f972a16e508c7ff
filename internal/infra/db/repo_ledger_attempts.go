package db

import (
	"context"

	"gorm.io/gorm"

	"vaultd/internal/domain"
)

type LedgerAttemptRepository struct {
	db *gorm.DB
}

func NewLedgerAttemptRepository(db *gorm.DB) *LedgerAttemptRepository {
	return &LedgerAttemptRepository{db: db}
}

func (r *LedgerAttemptRepository) Append(ctx context.Context, attempt domain.LedgerAttempt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := LedgerAttemptModel{
		Op:          attempt.Op,
		Status:      attempt.Status,
		ErrorCode:   attempt.ErrorCode,
		TxID:        attempt.TxID,
		BlockNumber: attempt.BlockNumber,
		ArgsJSON:    attempt.ArgsJSON,
		CreatedAt:   attempt.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *LedgerAttemptRepository) ListByOp(ctx context.Context, op string, limit int) ([]domain.LedgerAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	var models []LedgerAttemptModel
	err := r.db.WithContext(ctx).
		Where("op = ?", op).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.LedgerAttempt, 0, len(models))
	for _, m := range models {
		out = append(out, domain.LedgerAttempt{
			ID:          m.ID,
			Op:          m.Op,
			Status:      m.Status,
			ErrorCode:   m.ErrorCode,
			TxID:        m.TxID,
			BlockNumber: m.BlockNumber,
			ArgsJSON:    m.ArgsJSON,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out, nil
}
