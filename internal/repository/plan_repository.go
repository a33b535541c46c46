package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrTaskNotFound = errors.New("task not found")
)

// TaskDraft is the input for creating one task inside a plan.
type TaskDraft struct {
	Body              string
	AreaID            *uint
	CarriedFromTaskID *uint
}

// PlanRepository is the plan/task store. Operations that touch multiple
// rows run inside a transaction so a concurrent reader never observes a
// plan with a half-replaced task list.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetForDay returns the plan for (user, day) with tasks ordered by
// position, or nil if the day has no plan.
func (r *PlanRepository) GetForDay(ctx context.Context, userID uint, day localdate.Day) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ? AND local_day = ?", userID, day).
		First(&plan).Error
	switch {
	case err == nil:
		return &plan, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find plan: %w", err)
	}
}

// GetByID returns a plan with its ordered tasks.
func (r *PlanRepository) GetByID(ctx context.Context, planID uint) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&plan, planID).Error
	switch {
	case err == nil:
		return &plan, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrPlanNotFound
	default:
		return nil, fmt.Errorf("find plan: %w", err)
	}
}

// CreateOrReplace commits a task list for (user, day). An existing plan
// keeps its row identity: its tasks are deleted, the status is reset to
// confirmed with a fresh confirmation timestamp and cleared review
// timestamps. Task lists longer than the per-day cap are truncated, never
// rejected. The whole operation is atomic.
func (r *PlanRepository) CreateOrReplace(ctx context.Context, userID uint, day localdate.Day, drafts []TaskDraft, source model.PlanSource) (*model.Plan, error) {
	if len(drafts) > model.MaxTasksPerPlan {
		drafts = drafts[:model.MaxTasksPerPlan]
	}

	var planID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var plan model.Plan
		err := tx.Where("user_id = ? AND local_day = ?", userID, day).First(&plan).Error
		switch {
		case err == nil:
			if err := tx.Where("plan_id = ?", plan.ID).Delete(&model.Task{}).Error; err != nil {
				return fmt.Errorf("clear tasks: %w", err)
			}
			updates := map[string]interface{}{
				"status":            model.PlanConfirmed,
				"source":            source,
				"confirmed_at":      now,
				"review_started_at": nil,
				"reviewed_at":       nil,
			}
			if err := tx.Model(&plan).Updates(updates).Error; err != nil {
				return fmt.Errorf("reset plan: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			plan = model.Plan{
				UserID:      userID,
				LocalDay:    day,
				Status:      model.PlanConfirmed,
				Source:      source,
				ConfirmedAt: &now,
			}
			if err := tx.Create(&plan).Error; err != nil {
				return fmt.Errorf("create plan: %w", err)
			}
		default:
			return fmt.Errorf("find plan: %w", err)
		}

		if err := insertTasks(tx, &plan, drafts, 1); err != nil {
			return err
		}
		planID = plan.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, planID)
}

// AppendTasks adds tasks to an existing plan while slots remain. The input
// is truncated to the remaining capacity; the excess is silently dropped.
// Returns the full refreshed task list.
func (r *PlanRepository) AppendTasks(ctx context.Context, planID uint, drafts []TaskDraft) ([]model.Task, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan model.Plan
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return fmt.Errorf("find plan: %w", err)
		}

		var count int64
		if err := tx.Model(&model.Task{}).Where("plan_id = ?", planID).Count(&count).Error; err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}

		capacity := model.MaxTasksPerPlan - int(count)
		if capacity <= 0 {
			return nil
		}
		if len(drafts) > capacity {
			drafts = drafts[:capacity]
		}

		return insertTasks(tx, &plan, drafts, int(count)+1)
	})
	if err != nil {
		return nil, err
	}

	return r.listTasks(ctx, planID)
}

// SetTaskStatus writes a task outcome together with the change timestamp.
func (r *PlanRepository) SetTaskStatus(ctx context.Context, taskID uint, status model.TaskStatus) (*model.Task, error) {
	if !model.ValidTaskStatus(status) {
		return nil, fmt.Errorf("unknown task status %q", status)
	}

	var task model.Task
	db := r.db.WithContext(ctx)
	if err := db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}

	now := time.Now()
	task.Status = status
	task.StatusChangedAt = &now
	if err := db.Save(&task).Error; err != nil {
		return nil, fmt.Errorf("set task status: %w", err)
	}
	return &task, nil
}

// RemoveTaskAtPosition deletes the task at the given position and closes
// the gap, re-deriving positions as a dense 1..N sequence in the original
// relative order. Returns the refreshed list, or nil if no task exists at
// that position.
func (r *PlanRepository) RemoveTaskAtPosition(ctx context.Context, planID uint, position int) ([]model.Task, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		err := tx.Where("plan_id = ? AND position = ?", planID, position).First(&task).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("find task: %w", err)
		}

		if err := tx.Delete(&task).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}

		var rest []model.Task
		if err := tx.Where("plan_id = ?", planID).Order("position ASC").Find(&rest).Error; err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		for i := range rest {
			if rest[i].Position != i+1 {
				if err := tx.Model(&rest[i]).Update("position", i+1).Error; err != nil {
					return fmt.Errorf("reindex task: %w", err)
				}
			}
		}
		removed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, nil
	}

	tasks, err := r.listTasks(ctx, planID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		// Distinguish "plan is now empty" from "nothing at that position".
		tasks = []model.Task{}
	}
	return tasks, nil
}

// MarkReviewStarted transitions the plan to review_pending. The edge is
// validated: a plan that is not confirmed rejects the transition with
// model.ErrInvalidTransition.
func (r *PlanRepository) MarkReviewStarted(ctx context.Context, planID uint) (*model.Plan, error) {
	return r.transition(ctx, planID, model.PlanReviewPending, "review_started_at")
}

// MarkReviewCompleted transitions the plan to reviewed.
func (r *PlanRepository) MarkReviewCompleted(ctx context.Context, planID uint) (*model.Plan, error) {
	return r.transition(ctx, planID, model.PlanReviewed, "reviewed_at")
}

func (r *PlanRepository) transition(ctx context.Context, planID uint, next model.PlanStatus, stampColumn string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&plan, planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return fmt.Errorf("find plan: %w", err)
		}

		if err := plan.Status.Transition(next); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":    next,
			stampColumn: now,
		}
		if err := tx.Model(&plan).Updates(updates).Error; err != nil {
			return fmt.Errorf("update plan status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ReviewedDays returns the local-day keys of every reviewed plan, newest
// first. Backed by the (user, status, day) index so streak computation is
// proportional to active days, not table size.
func (r *PlanRepository) ReviewedDays(ctx context.Context, userID uint) ([]localdate.Day, error) {
	var days []localdate.Day
	err := r.db.WithContext(ctx).Model(&model.Plan{}).
		Where("user_id = ? AND status = ?", userID, model.PlanReviewed).
		Order("local_day DESC").
		Pluck("local_day", &days).Error
	if err != nil {
		return nil, fmt.Errorf("list reviewed days: %w", err)
	}
	return days, nil
}

// PlansBetween returns committed plans (confirmed, review_pending or
// reviewed) whose local day falls inside [from, to], tasks included.
func (r *PlanRepository) PlansBetween(ctx context.Context, userID uint, from, to localdate.Day) ([]model.Plan, error) {
	var plans []model.Plan
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("user_id = ? AND local_day BETWEEN ? AND ?", userID, from, to).
		Where("status IN ?", []model.PlanStatus{model.PlanConfirmed, model.PlanReviewPending, model.PlanReviewed}).
		Order("local_day ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (r *PlanRepository) listTasks(ctx context.Context, planID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("plan_id = ?", planID).Order("position ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func insertTasks(tx *gorm.DB, plan *model.Plan, drafts []TaskDraft, startPos int) error {
	for i, draft := range drafts {
		body := draft.Body
		if len([]rune(body)) > model.MaxTaskBodyLen {
			body = string([]rune(body)[:model.MaxTaskBodyLen])
		}
		task := model.Task{
			PlanID:            plan.ID,
			UserID:            plan.UserID,
			AreaID:            draft.AreaID,
			Body:              body,
			Position:          startPos + i,
			Status:            model.TaskPending,
			CarriedFromTaskID: draft.CarriedFromTaskID,
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
	}
	return nil
}
