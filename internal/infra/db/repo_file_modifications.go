package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vaultd/internal/domain"
)

type FileModificationRepository struct {
	db *gorm.DB
}

func NewFileModificationRepository(db *gorm.DB) *FileModificationRepository {
	return &FileModificationRepository{db: db}
}

func (r *FileModificationRepository) Append(ctx context.Context, entry domain.FileModification) (domain.FileModification, error) {
	if r.db == nil {
		return domain.FileModification{}, errDBUnavailable
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	model := modificationToModel(entry)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.FileModification{}, err
	}
	entry.ID = model.ID
	return entry, nil
}

func (r *FileModificationRepository) ListByFile(ctx context.Context, fileID string) ([]domain.FileModification, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []FileModificationModel
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.FileModification, 0, len(models))
	for _, m := range models {
		out = append(out, modificationFromModel(m))
	}
	return out, nil
}

func modificationToModel(entry domain.FileModification) FileModificationModel {
	return FileModificationModel{
		ID:          entry.ID,
		FileID:      entry.FileID,
		Action:      string(entry.Action),
		PerformedBy: entry.PerformedBy,
		Details:     entry.Details,
		LedgerTxID:  entry.LedgerTxID,
		CreatedAt:   entry.CreatedAt,
	}
}

func modificationFromModel(model FileModificationModel) domain.FileModification {
	return domain.FileModification{
		ID:          model.ID,
		FileID:      model.FileID,
		Action:      domain.ModificationAction(model.Action),
		PerformedBy: model.PerformedBy,
		Details:     model.Details,
		LedgerTxID:  model.LedgerTxID,
		CreatedAt:   model.CreatedAt,
	}
}
