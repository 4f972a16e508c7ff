package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vaultd/internal/domain"
)

type AccessRequestRepository struct {
	db *gorm.DB
}

func NewAccessRequestRepository(db *gorm.DB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

func (r *AccessRequestRepository) CreateIfNoActive(ctx context.Context, req domain.AccessRequest) (domain.AccessRequest, error) {
	if r.db == nil {
		return domain.AccessRequest{}, errDBUnavailable
	}
	model := requestToModel(req)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&AccessRequestModel{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND file_id = ? AND status IN ?",
				req.UserID, req.FileID,
				[]string{string(domain.StatusPending), string(domain.StatusApproved)}).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrDuplicateRequest
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRequest) {
			return domain.AccessRequest{}, domain.ErrDuplicateRequest
		}
		// The partial unique index catches the race the row lock cannot see
		// (two inserts for a pair with no existing row to lock).
		if isUniqueViolation(err) {
			return domain.AccessRequest{}, domain.ErrDuplicateRequest
		}
		return domain.AccessRequest{}, err
	}
	return requestFromModel(model), nil
}

func (r *AccessRequestRepository) GetByID(ctx context.Context, id int64) (domain.AccessRequest, error) {
	if r.db == nil {
		return domain.AccessRequest{}, errDBUnavailable
	}
	var model AccessRequestModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		return domain.AccessRequest{}, mapNotFound(err)
	}
	return requestFromModel(model), nil
}

func (r *AccessRequestRepository) UpdateTransition(ctx context.Context, req domain.AccessRequest, fromStatus domain.RequestStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return applyTransition(r.db.WithContext(ctx), req, fromStatus)
}

// CommitRelease performs the transition and the view audit insert in one
// transaction. A failed insert rolls the transition back, so the request
// stays in fromStatus and the caller may retry; a row without its audit
// entry can never exist.
func (r *AccessRequestRepository) CommitRelease(ctx context.Context, req domain.AccessRequest, fromStatus domain.RequestStatus, entry domain.AccessLog) (domain.AccessLog, error) {
	if r.db == nil {
		return domain.AccessLog{}, errDBUnavailable
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyTransition(tx, req, fromStatus); err != nil {
			return err
		}
		model := logToModel(entry)
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		entry.ID = model.ID
		return nil
	})
	if err != nil {
		return domain.AccessLog{}, err
	}
	return entry, nil
}

// applyTransition is the conditional update serializing concurrent
// transitions on one request.
func applyTransition(tx *gorm.DB, req domain.AccessRequest, fromStatus domain.RequestStatus) error {
	updates := map[string]any{
		"status":            string(req.Status),
		"processed_by":      req.ProcessedBy,
		"processed_at":      req.ProcessedAt,
		"admin_notes":       req.AdminNotes,
		"otp_sent":          req.OTPSent,
		"access_granted_at": req.AccessGrantedAt,
	}
	result := tx.
		Model(&AccessRequestModel{}).
		Where("id = ? AND status = ?", req.ID, string(fromStatus)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row is gone or a concurrent transition won. Re-read to
		// tell the two apart.
		var model AccessRequestModel
		if err := tx.First(&model, req.ID).Error; err != nil {
			return mapNotFound(err)
		}
		return domain.ErrInvalidStateTransition
	}
	return nil
}

func (r *AccessRequestRepository) SetLedgerTx(ctx context.Context, id int64, field domain.LedgerTxField, txID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	column, ok := ledgerTxColumn(field)
	if !ok {
		return errors.New("unknown ledger tx field: " + string(field))
	}
	return r.db.WithContext(ctx).
		Model(&AccessRequestModel{}).
		Where("id = ?", id).
		Update(column, txID).Error
}

func (r *AccessRequestRepository) ListByUser(ctx context.Context, userID int64) ([]domain.AccessRequest, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AccessRequestModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return requestsFromModels(models), nil
}

func (r *AccessRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.AccessRequest, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AccessRequestModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("requested_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return requestsFromModels(models), nil
}

func (r *AccessRequestRepository) CountByUserAndStatus(ctx context.Context, userID int64, status domain.RequestStatus) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AccessRequestModel{}).
		Where("user_id = ? AND status = ?", userID, string(status)).
		Count(&count).Error
	return count, err
}

func (r *AccessRequestRepository) CountByStatus(ctx context.Context, status domain.RequestStatus) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AccessRequestModel{}).
		Where("status = ?", string(status)).
		Count(&count).Error
	return count, err
}

func ledgerTxColumn(field domain.LedgerTxField) (string, bool) {
	switch field {
	case domain.TxFieldRequest:
		return "request_tx_id", true
	case domain.TxFieldProcess:
		return "process_tx_id", true
	case domain.TxFieldAccess:
		return "access_tx_id", true
	}
	return "", false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLSTATE 23505, surfaced by the pgx driver inside the error text.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key value")
}

func requestToModel(req domain.AccessRequest) AccessRequestModel {
	return AccessRequestModel{
		ID:              req.ID,
		UserID:          req.UserID,
		FileID:          req.FileID,
		Reason:          req.Reason,
		Status:          string(req.Status),
		RequestedAt:     req.RequestedAt,
		ProcessedBy:     req.ProcessedBy,
		ProcessedAt:     req.ProcessedAt,
		AdminNotes:      req.AdminNotes,
		OTPSent:         req.OTPSent,
		AccessGrantedAt: req.AccessGrantedAt,
		RequestTxID:     req.RequestTxID,
		ProcessTxID:     req.ProcessTxID,
		AccessTxID:      req.AccessTxID,
	}
}

func requestFromModel(model AccessRequestModel) domain.AccessRequest {
	return domain.AccessRequest{
		ID:              model.ID,
		UserID:          model.UserID,
		FileID:          model.FileID,
		Reason:          model.Reason,
		Status:          domain.RequestStatus(model.Status),
		RequestedAt:     model.RequestedAt,
		ProcessedBy:     model.ProcessedBy,
		ProcessedAt:     model.ProcessedAt,
		AdminNotes:      model.AdminNotes,
		OTPSent:         model.OTPSent,
		AccessGrantedAt: model.AccessGrantedAt,
		RequestTxID:     model.RequestTxID,
		ProcessTxID:     model.ProcessTxID,
		AccessTxID:      model.AccessTxID,
	}
}

func requestsFromModels(models []AccessRequestModel) []domain.AccessRequest {
	out := make([]domain.AccessRequest, 0, len(models))
	for _, m := range models {
		out = append(out, requestFromModel(m))
	}
	return out
}
