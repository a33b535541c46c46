package service

import (
	"context"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/repository"
)

// CarryoverService extracts unfinished tasks from one day's plan as
// candidates to migrate into another day's plan. It never mutates the
// source plan; migration happens through the plan store with weak
// carried-from links.
type CarryoverService struct {
	planRepo *repository.PlanRepository
}

func NewCarryoverService(planRepo *repository.PlanRepository) *CarryoverService {
	return &CarryoverService{planRepo: planRepo}
}

// Candidates returns source tasks still in progress, in original position
// order. Tasks whose id already appears as a carried-from link among the
// target's tasks are excluded, so offering the carry-over twice never
// migrates a task twice.
func (s *CarryoverService) Candidates(source, target *model.Plan) []model.Task {
	if source == nil {
		return nil
	}

	carried := make(map[uint]bool)
	if target != nil {
		for _, t := range target.Tasks {
			if t.CarriedFromTaskID != nil {
				carried[*t.CarriedFromTaskID] = true
			}
		}
	}

	var candidates []model.Task
	for _, t := range source.Tasks {
		if t.Status != model.TaskInProgress {
			continue
		}
		if carried[t.ID] {
			continue
		}
		candidates = append(candidates, t)
	}
	return candidates
}

// CarryOver migrates the source day's in-progress tasks into the target
// day's plan, creating the target plan as carried_over when absent.
// Returns the migrated tasks; nil when there is nothing to carry.
func (s *CarryoverService) CarryOver(ctx context.Context, user *model.User, sourceDay, targetDay localdate.Day) ([]model.Task, error) {
	source, err := s.planRepo.GetForDay(ctx, user.ID, sourceDay)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, nil
	}

	target, err := s.planRepo.GetForDay(ctx, user.ID, targetDay)
	if err != nil {
		return nil, err
	}

	candidates := s.Candidates(source, target)
	if len(candidates) == 0 {
		return nil, nil
	}

	drafts := make([]repository.TaskDraft, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		drafts = append(drafts, repository.TaskDraft{
			Body:              c.Body,
			AreaID:            c.AreaID,
			CarriedFromTaskID: &candidates[i].ID,
		})
	}

	if target == nil {
		plan, err := s.planRepo.CreateOrReplace(ctx, user.ID, targetDay, drafts, model.SourceCarriedOver)
		if err != nil {
			return nil, err
		}
		return plan.Tasks, nil
	}

	return s.planRepo.AppendTasks(ctx, target.ID, drafts)
}
