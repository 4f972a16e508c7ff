package db

import (
	"context"

	"gorm.io/gorm"

	"vaultd/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	if r.db == nil {
		return domain.User{}, errDBUnavailable
	}
	var model UserModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return userFromModel(model), nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	if r.db == nil {
		return domain.User{}, errDBUnavailable
	}
	var model UserModel
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&model).Error
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return userFromModel(model), nil
}

func userFromModel(model UserModel) domain.User {
	return domain.User{
		ID:            model.ID,
		Username:      model.Username,
		Email:         model.Email,
		Role:          domain.Role(model.Role),
		WalletAddress: model.WalletAddress,
		TOTPSecret:    model.TOTPSecret,
		MFAConfigured: model.MFAConfigured,
	}
}
