package service

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/repository"
)

func seedReviewed(t *testing.T, db *gorm.DB, userID uint, days ...localdate.Day) {
	t.Helper()
	for _, day := range days {
		plan := model.Plan{UserID: userID, LocalDay: day, Status: model.PlanReviewed}
		if err := db.Create(&plan).Error; err != nil {
			t.Fatalf("seed reviewed plan: %v", err)
		}
	}
}

func TestStreakEmptyHistory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	streak, err := svc.Streak(context.Background(), user, time.Now())
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if streak != 0 {
		t.Fatalf("expected streak 0, got %d", streak)
	}
}

func TestStreakCountsBackFromToday(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	// Three consecutive days ending today, plus an older detached day.
	seedReviewed(t, db, 1, "2024-05-11", "2024-05-12", "2024-05-13", "2024-05-08")
	now := time.Date(2024, 5, 13, 15, 0, 0, 0, time.UTC)

	streak, err := svc.Streak(context.Background(), user, now)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if streak != 3 {
		t.Fatalf("expected streak 3, got %d", streak)
	}
}

func TestStreakTodayUnreviewedDoesNotBreak(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	seedReviewed(t, db, 1, "2024-05-11", "2024-05-12")
	now := time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)

	streak, err := svc.Streak(context.Background(), user, now)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if streak != 2 {
		t.Fatalf("expected streak 2, got %d", streak)
	}
}

func TestStreakBrokenByGapBeforeYesterday(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	// Yesterday reviewed, the day before missed.
	seedReviewed(t, db, 1, "2024-05-12", "2024-05-10")
	now := time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)

	streak, err := svc.Streak(context.Background(), user, now)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if streak != 1 {
		t.Fatalf("expected streak 1, got %d", streak)
	}
}

func TestStreakGapAfterTodayCapsAtOne(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	// Today reviewed, yesterday missed; older reviews do not count.
	seedReviewed(t, db, 1, "2024-05-13", "2024-05-11", "2024-05-10")
	now := time.Date(2024, 5, 13, 21, 0, 0, 0, time.UTC)

	streak, err := svc.Streak(context.Background(), user, now)
	if err != nil {
		t.Fatalf("Streak: %v", err)
	}
	if streak != 1 {
		t.Fatalf("expected streak 1, got %d", streak)
	}
}

func TestStreakRejectsBadTimezone(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "Mars/Olympus"}
	user.ID = 1

	if _, err := svc.Streak(context.Background(), user, time.Now()); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestWeeklyStats(t *testing.T) {
	db := setupTestDB(t)
	planRepo := repository.NewPlanRepository(db)
	areaRepo := repository.NewAreaRepository(db)
	svc := NewStatsService(planRepo, areaRepo)
	ctx := context.Background()

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	work, err := areaRepo.GetOrCreate(ctx, 1, "работа")
	if err != nil {
		t.Fatalf("create area: %v", err)
	}

	monday := seedPlan(t, planRepo, 1, "2024-05-13", "unassigned")
	setStatus(t, planRepo, monday.Tasks[0].ID, model.TaskDone)

	tuesday, err := planRepo.CreateOrReplace(ctx, 1, "2024-05-14", []repository.TaskDraft{
		{Body: "sprint review", AreaID: &work.ID},
		{Body: "refactor", AreaID: &work.ID},
	}, model.SourceManual)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	setStatus(t, planRepo, tuesday.Tasks[0].ID, model.TaskDone)

	// Outside the Monday-Sunday window; must not count.
	seedPlan(t, planRepo, 1, "2024-05-12", "previous week")

	ref := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	stats, err := svc.Weekly(ctx, user, ref)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}

	if stats.WeekStart != "2024-05-13" || stats.WeekEnd != "2024-05-19" {
		t.Fatalf("unexpected window: %s..%s", stats.WeekStart, stats.WeekEnd)
	}
	if stats.PlannedDays != 2 {
		t.Fatalf("expected 2 planned days, got %d", stats.PlannedDays)
	}
	if stats.TotalTasks != 3 || stats.DoneTasks != 2 {
		t.Fatalf("expected 2/3 done, got %d/%d", stats.DoneTasks, stats.TotalTasks)
	}
	if stats.CompletionRate != 67 {
		t.Fatalf("expected 67%%, got %d%%", stats.CompletionRate)
	}
	if stats.AvgTasksPerDay != 1.5 {
		t.Fatalf("expected 1.5 tasks/day, got %v", stats.AvgTasksPerDay)
	}
	if len(stats.Areas) != 1 || stats.Areas[0].Name != "работа" || stats.Areas[0].Total != 2 || stats.Areas[0].Done != 1 {
		t.Fatalf("unexpected area breakdown: %+v", stats.Areas)
	}
}

func TestWeeklyStatsEmptyWeek(t *testing.T) {
	db := setupTestDB(t)
	svc := NewStatsService(repository.NewPlanRepository(db), repository.NewAreaRepository(db))

	user := &model.User{Timezone: "UTC"}
	user.ID = 1

	stats, err := svc.Weekly(context.Background(), user, time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	if stats.CompletionRate != 0 || stats.TotalTasks != 0 || stats.AvgTasksPerDay != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}
