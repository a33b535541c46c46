package service

import (
	"context"

	"dailyflow/internal/model"
	"dailyflow/internal/repository"
)

// AreaService provides helpers around life areas.
type AreaService struct {
	repo *repository.AreaRepository
}

func NewAreaService(repo *repository.AreaRepository) *AreaService {
	return &AreaService{repo: repo}
}

func (s *AreaService) List(ctx context.Context, user *model.User) ([]model.Area, error) {
	return s.repo.ListByUser(ctx, user.ID)
}
