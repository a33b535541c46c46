package service

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Area{}, &model.Plan{}, &model.Task{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedPlan(t *testing.T, repo *repository.PlanRepository, userID uint, day localdate.Day, bodies ...string) *model.Plan {
	t.Helper()
	drafts := make([]repository.TaskDraft, 0, len(bodies))
	for _, b := range bodies {
		drafts = append(drafts, repository.TaskDraft{Body: b})
	}
	plan, err := repo.CreateOrReplace(context.Background(), userID, day, drafts, model.SourceManual)
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

func setStatus(t *testing.T, repo *repository.PlanRepository, taskID uint, status model.TaskStatus) {
	t.Helper()
	if _, err := repo.SetTaskStatus(context.Background(), taskID, status); err != nil {
		t.Fatalf("set task status: %v", err)
	}
}

func TestCarryoverCandidates(t *testing.T) {
	svc := NewCarryoverService(nil)

	id := func(v uint) *uint { return &v }
	source := &model.Plan{Tasks: []model.Task{
		{Body: "done", Status: model.TaskDone},
		{Body: "first open", Status: model.TaskInProgress, Position: 2},
		{Body: "skipped", Status: model.TaskSkipped},
		{Body: "second open", Status: model.TaskInProgress, Position: 4},
	}}
	source.Tasks[1].ID = 11
	source.Tasks[3].ID = 13

	got := svc.Candidates(source, nil)
	if len(got) != 2 || got[0].Body != "first open" || got[1].Body != "second open" {
		t.Fatalf("unexpected candidates: %+v", got)
	}

	// A target that already carries task 11 hides it from the offer.
	target := &model.Plan{Tasks: []model.Task{
		{Body: "first open", Status: model.TaskPending, CarriedFromTaskID: id(11)},
	}}
	got = svc.Candidates(source, target)
	if len(got) != 1 || got[0].Body != "second open" {
		t.Fatalf("unexpected candidates with target: %+v", got)
	}

	if got := svc.Candidates(nil, target); got != nil {
		t.Fatalf("expected nil for missing source, got %+v", got)
	}
}

func TestCarryOverCreatesTargetPlan(t *testing.T) {
	planRepo := repository.NewPlanRepository(setupTestDB(t))
	svc := NewCarryoverService(planRepo)
	ctx := context.Background()

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	source := seedPlan(t, planRepo, user.ID, "2024-05-13", "ship release", "write docs")
	setStatus(t, planRepo, source.Tasks[0].ID, model.TaskDone)
	setStatus(t, planRepo, source.Tasks[1].ID, model.TaskInProgress)

	moved, err := svc.CarryOver(ctx, user, "2024-05-13", "2024-05-14")
	if err != nil {
		t.Fatalf("CarryOver: %v", err)
	}
	if len(moved) != 1 || moved[0].Body != "write docs" {
		t.Fatalf("unexpected migrated tasks: %+v", moved)
	}
	if moved[0].CarriedFromTaskID == nil || *moved[0].CarriedFromTaskID != source.Tasks[1].ID {
		t.Fatalf("expected carried-from link to %d, got %+v", source.Tasks[1].ID, moved[0].CarriedFromTaskID)
	}

	target, err := planRepo.GetForDay(ctx, user.ID, "2024-05-14")
	if err != nil {
		t.Fatalf("GetForDay: %v", err)
	}
	if target == nil || target.Source != model.SourceCarriedOver {
		t.Fatalf("expected carried_over target plan, got %+v", target)
	}

	// The source plan is untouched.
	sourceAfter, err := planRepo.GetForDay(ctx, user.ID, "2024-05-13")
	if err != nil {
		t.Fatalf("GetForDay: %v", err)
	}
	if len(sourceAfter.Tasks) != 2 || sourceAfter.Tasks[1].Status != model.TaskInProgress {
		t.Fatalf("source plan mutated: %+v", sourceAfter.Tasks)
	}
}

func TestCarryOverAppendsToExistingTarget(t *testing.T) {
	planRepo := repository.NewPlanRepository(setupTestDB(t))
	svc := NewCarryoverService(planRepo)
	ctx := context.Background()

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	source := seedPlan(t, planRepo, user.ID, "2024-05-13", "refactor parser")
	setStatus(t, planRepo, source.Tasks[0].ID, model.TaskInProgress)
	seedPlan(t, planRepo, user.ID, "2024-05-14", "standup")

	moved, err := svc.CarryOver(ctx, user, "2024-05-13", "2024-05-14")
	if err != nil {
		t.Fatalf("CarryOver: %v", err)
	}
	if len(moved) != 2 {
		t.Fatalf("expected refreshed list of 2, got %d", len(moved))
	}
	if moved[0].Body != "standup" || moved[1].Body != "refactor parser" {
		t.Fatalf("unexpected task order: %+v", moved)
	}
	if moved[1].Position != 2 {
		t.Fatalf("expected appended position 2, got %d", moved[1].Position)
	}
}

func TestCarryOverIsIdempotent(t *testing.T) {
	planRepo := repository.NewPlanRepository(setupTestDB(t))
	svc := NewCarryoverService(planRepo)
	ctx := context.Background()

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	source := seedPlan(t, planRepo, user.ID, "2024-05-13", "paint fence")
	setStatus(t, planRepo, source.Tasks[0].ID, model.TaskInProgress)

	if _, err := svc.CarryOver(ctx, user, "2024-05-13", "2024-05-14"); err != nil {
		t.Fatalf("first CarryOver: %v", err)
	}

	// Running the migration again moves nothing.
	moved, err := svc.CarryOver(ctx, user, "2024-05-13", "2024-05-14")
	if err != nil {
		t.Fatalf("second CarryOver: %v", err)
	}
	if moved != nil {
		t.Fatalf("expected no second migration, got %+v", moved)
	}

	target, err := planRepo.GetForDay(ctx, user.ID, "2024-05-14")
	if err != nil {
		t.Fatalf("GetForDay: %v", err)
	}
	if len(target.Tasks) != 1 {
		t.Fatalf("expected task carried exactly once, got %d copies", len(target.Tasks))
	}
}

func TestCarryOverNothingToMove(t *testing.T) {
	planRepo := repository.NewPlanRepository(setupTestDB(t))
	svc := NewCarryoverService(planRepo)
	ctx := context.Background()

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	// No source plan at all.
	moved, err := svc.CarryOver(ctx, user, "2024-05-13", "2024-05-14")
	if err != nil || moved != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", moved, err)
	}

	// Source exists but everything is closed.
	source := seedPlan(t, planRepo, user.ID, "2024-05-13", "water plants")
	setStatus(t, planRepo, source.Tasks[0].ID, model.TaskDone)

	moved, err = svc.CarryOver(ctx, user, "2024-05-13", "2024-05-14")
	if err != nil || moved != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", moved, err)
	}
	if target, _ := planRepo.GetForDay(ctx, user.ID, "2024-05-14"); target != nil {
		t.Fatalf("expected no target plan, got %+v", target)
	}
}
