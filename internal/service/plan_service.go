package service

import (
	"context"
	"strings"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/repository"
)

// TaskLine is one line of user input for a task, optionally tagged with a
// life area ("Write report #work").
type TaskLine struct {
	Body string
	Area string
}

// ParseTaskLine splits a trailing "#area" tag off a task line.
func ParseTaskLine(raw string) TaskLine {
	line := TaskLine{Body: strings.TrimSpace(raw)}
	if idx := strings.LastIndex(line.Body, "#"); idx > 0 {
		area := strings.TrimSpace(line.Body[idx+1:])
		if area != "" && !strings.ContainsAny(area, " \t") {
			line.Area = area
			line.Body = strings.TrimSpace(line.Body[:idx])
		}
	}
	return line
}

// PlanService wraps plan-related business logic.
type PlanService struct {
	planRepo *repository.PlanRepository
	areaRepo *repository.AreaRepository
}

func NewPlanService(planRepo *repository.PlanRepository, areaRepo *repository.AreaRepository) *PlanService {
	return &PlanService{planRepo: planRepo, areaRepo: areaRepo}
}

// PlanFor returns the user's plan for the given local day, or nil.
func (s *PlanService) PlanFor(ctx context.Context, user *model.User, day localdate.Day) (*model.Plan, error) {
	return s.planRepo.GetForDay(ctx, user.ID, day)
}

// PlanByID returns a plan with ordered tasks.
func (s *PlanService) PlanByID(ctx context.Context, planID uint) (*model.Plan, error) {
	return s.planRepo.GetByID(ctx, planID)
}

// Commit creates or replaces the plan for a day from raw task lines. Blank
// lines are dropped; area tags are resolved to the user's areas.
func (s *PlanService) Commit(ctx context.Context, user *model.User, day localdate.Day, lines []TaskLine, source model.PlanSource) (*model.Plan, error) {
	drafts, err := s.drafts(ctx, user, lines)
	if err != nil {
		return nil, err
	}
	return s.planRepo.CreateOrReplace(ctx, user.ID, day, drafts, source)
}

// Append adds task lines to an existing plan while slots remain and returns
// the refreshed list.
func (s *PlanService) Append(ctx context.Context, user *model.User, planID uint, lines []TaskLine) ([]model.Task, error) {
	drafts, err := s.drafts(ctx, user, lines)
	if err != nil {
		return nil, err
	}
	return s.planRepo.AppendTasks(ctx, planID, drafts)
}

// MarkTask records a task outcome.
func (s *PlanService) MarkTask(ctx context.Context, taskID uint, status model.TaskStatus) (*model.Task, error) {
	return s.planRepo.SetTaskStatus(ctx, taskID, status)
}

// RemoveAt deletes the task at a position and reindexes the survivors.
func (s *PlanService) RemoveAt(ctx context.Context, planID uint, position int) ([]model.Task, error) {
	return s.planRepo.RemoveTaskAtPosition(ctx, planID, position)
}

// StartReview transitions the plan into review_pending.
func (s *PlanService) StartReview(ctx context.Context, planID uint) (*model.Plan, error) {
	return s.planRepo.MarkReviewStarted(ctx, planID)
}

// CompleteReview transitions the plan into reviewed.
func (s *PlanService) CompleteReview(ctx context.Context, planID uint) (*model.Plan, error) {
	return s.planRepo.MarkReviewCompleted(ctx, planID)
}

func (s *PlanService) drafts(ctx context.Context, user *model.User, lines []TaskLine) ([]repository.TaskDraft, error) {
	drafts := make([]repository.TaskDraft, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.Body) == "" {
			continue
		}
		draft := repository.TaskDraft{Body: strings.TrimSpace(line.Body)}
		if line.Area != "" {
			area, err := s.areaRepo.GetOrCreate(ctx, user.ID, line.Area)
			if err != nil {
				return nil, err
			}
			if area != nil {
				draft.AreaID = &area.ID
			}
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}
