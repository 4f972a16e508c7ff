package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"vaultd/internal/domain"
)

type OTPTokenRepository struct {
	db *gorm.DB
}

func NewOTPTokenRepository(db *gorm.DB) *OTPTokenRepository {
	return &OTPTokenRepository{db: db}
}

func (r *OTPTokenRepository) Create(ctx context.Context, token domain.OTPToken) (domain.OTPToken, error) {
	if r.db == nil {
		return domain.OTPToken{}, errDBUnavailable
	}
	model := OTPTokenModel{
		UserID:    token.UserID,
		Code:      token.Code,
		Purpose:   token.Purpose,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.OTPToken{}, err
	}
	token.ID = model.ID
	return token, nil
}

func (r *OTPTokenRepository) ConsumeLatest(ctx context.Context, userID int64, code, purpose string, now time.Time) (domain.OTPToken, error) {
	if r.db == nil {
		return domain.OTPToken{}, errDBUnavailable
	}
	var model OTPTokenModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND code = ? AND purpose = ? AND used = false AND expires_at > ?",
			userID, code, purpose, now).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OTPToken{}, domain.ErrInvalidCode
		}
		return domain.OTPToken{}, err
	}

	// Conditional mark keeps the token single-use under concurrent
	// verification: only one caller flips used.
	result := r.db.WithContext(ctx).
		Model(&OTPTokenModel{}).
		Where("id = ? AND used = false", model.ID).
		Updates(map[string]any{"used": true, "used_at": now})
	if result.Error != nil {
		return domain.OTPToken{}, result.Error
	}
	if result.RowsAffected == 0 {
		return domain.OTPToken{}, domain.ErrInvalidCode
	}

	return domain.OTPToken{
		ID:        model.ID,
		UserID:    model.UserID,
		Code:      model.Code,
		Purpose:   model.Purpose,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
		Used:      true,
		UsedAt:    &now,
	}, nil
}

func (r *OTPTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Where("used = false AND expires_at < ?", now).
		Delete(&OTPTokenModel{})
	return result.RowsAffected, result.Error
}
