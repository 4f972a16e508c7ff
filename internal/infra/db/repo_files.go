package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vaultd/internal/domain"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// NewDataID mints a vault file identifier.
func NewDataID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DATA-" + strings.ToUpper(hex[:12])
}

func (r *FileRepository) Create(ctx context.Context, file domain.DataFile) (domain.DataFile, error) {
	if r.db == nil {
		return domain.DataFile{}, errDBUnavailable
	}
	if file.DataID == "" {
		file.DataID = NewDataID()
	}
	if file.Status == "" {
		file.Status = domain.FileActive
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	if file.UpdatedAt.IsZero() {
		file.UpdatedAt = file.UploadedAt
	}
	model := fileToModel(file)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.DataFile{}, err
	}
	return fileFromModel(model), nil
}

func (r *FileRepository) GetActive(ctx context.Context, dataID string) (domain.DataFile, error) {
	if r.db == nil {
		return domain.DataFile{}, errDBUnavailable
	}
	var model DataFileModel
	err := r.db.WithContext(ctx).
		Where("data_id = ? AND status = ?", dataID, string(domain.FileActive)).
		First(&model).Error
	if err != nil {
		return domain.DataFile{}, mapNotFound(err)
	}
	return fileFromModel(model), nil
}

func (r *FileRepository) GetByID(ctx context.Context, dataID string) (domain.DataFile, error) {
	if r.db == nil {
		return domain.DataFile{}, errDBUnavailable
	}
	var model DataFileModel
	err := r.db.WithContext(ctx).
		Where("data_id = ?", dataID).
		First(&model).Error
	if err != nil {
		return domain.DataFile{}, mapNotFound(err)
	}
	return fileFromModel(model), nil
}

// ApplyChange is the conditional-update path for catalog mutations. The
// status guard and the history insert run in one transaction: a file that
// concurrently left fromStatus rolls the whole change back.
func (r *FileRepository) ApplyChange(ctx context.Context, file domain.DataFile, fromStatus domain.FileStatus, entry domain.FileModification) (domain.FileModification, error) {
	if r.db == nil {
		return domain.FileModification{}, errDBUnavailable
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&DataFileModel{}).
			Where("data_id = ? AND status = ?", file.DataID, string(fromStatus)).
			Updates(map[string]any{
				"title":       file.Title,
				"description": file.Description,
				"status":      string(file.Status),
				"updated_at":  file.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		model := modificationToModel(entry)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		entry.ID = model.ID
		return nil
	})
	if err != nil {
		return domain.FileModification{}, err
	}
	return entry, nil
}

func (r *FileRepository) SetLedgerTx(ctx context.Context, dataID string, txID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).
		Model(&DataFileModel{}).
		Where("data_id = ?", dataID).
		Update("ledger_tx_id", txID).Error
}

func (r *FileRepository) ListActive(ctx context.Context) ([]domain.DataFile, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []DataFileModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.FileActive)).
		Order("uploaded_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.DataFile, 0, len(models))
	for _, m := range models {
		out = append(out, fileFromModel(m))
	}
	return out, nil
}

func (r *FileRepository) CountActive(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DataFileModel{}).
		Where("status = ?", string(domain.FileActive)).
		Count(&count).Error
	return count, err
}

func fileToModel(file domain.DataFile) DataFileModel {
	return DataFileModel{
		DataID:      file.DataID,
		Title:       file.Title,
		Description: file.Description,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		SizeBytes:   file.SizeBytes,
		UploadedBy:  file.UploadedBy,
		UploadedAt:  file.UploadedAt,
		UpdatedAt:   file.UpdatedAt,
		Status:      string(file.Status),
		LedgerTxID:  file.LedgerTxID,
	}
}

func fileFromModel(model DataFileModel) domain.DataFile {
	return domain.DataFile{
		DataID:      model.DataID,
		Title:       model.Title,
		Description: model.Description,
		FileName:    model.FileName,
		ContentType: model.ContentType,
		SizeBytes:   model.SizeBytes,
		UploadedBy:  model.UploadedBy,
		UploadedAt:  model.UploadedAt,
		UpdatedAt:   model.UpdatedAt,
		Status:      domain.FileStatus(model.Status),
		LedgerTxID:  model.LedgerTxID,
	}
}
