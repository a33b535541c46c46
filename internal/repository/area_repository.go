package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dailyflow/internal/model"
)

// AreaRepository manages user-defined life areas.
type AreaRepository struct {
	db *gorm.DB
}

func NewAreaRepository(db *gorm.DB) *AreaRepository {
	return &AreaRepository{db: db}
}

func (r *AreaRepository) GetOrCreate(ctx context.Context, userID uint, name string) (*model.Area, error) {
	if name == "" {
		return nil, nil
	}

	var area model.Area
	db := r.db.WithContext(ctx)
	err := db.Where("user_id = ? AND name = ?", userID, name).First(&area).Error
	switch {
	case err == nil:
		return &area, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		area = model.Area{UserID: userID, Name: name}
		if err := db.Create(&area).Error; err != nil {
			return nil, fmt.Errorf("create area: %w", err)
		}
		return &area, nil
	default:
		return nil, fmt.Errorf("find area: %w", err)
	}
}

func (r *AreaRepository) ListByUser(ctx context.Context, userID uint) ([]model.Area, error) {
	var areas []model.Area
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&areas).Error; err != nil {
		return nil, err
	}
	return areas, nil
}
