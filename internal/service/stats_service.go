package service

import (
	"context"
	"math"
	"sort"
	"time"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/repository"
)

// AreaStat aggregates task counts for one life area inside a week.
type AreaStat struct {
	Name  string
	Total int
	Done  int
}

// WeeklyStats summarizes a Monday-Sunday window in the user's timezone.
type WeeklyStats struct {
	WeekStart      localdate.Day
	WeekEnd        localdate.Day
	PlannedDays    int
	TotalTasks     int
	DoneTasks      int
	CompletionRate int // percent, rounded; 0 when the window has no tasks
	AvgTasksPerDay float64
	Areas          []AreaStat
}

// StatsService computes the consistency streak and weekly aggregates.
type StatsService struct {
	planRepo *repository.PlanRepository
	areaRepo *repository.AreaRepository
}

func NewStatsService(planRepo *repository.PlanRepository, areaRepo *repository.AreaRepository) *StatsService {
	return &StatsService{planRepo: planRepo, areaRepo: areaRepo}
}

// Streak counts consecutive local days with a reviewed plan, walking
// backward from today. Today without a review does not break the streak;
// the walk then starts at yesterday.
func (s *StatsService) Streak(ctx context.Context, user *model.User, now time.Time) (int, error) {
	loc, err := localdate.Load(user.Timezone)
	if err != nil {
		return 0, err
	}

	days, err := s.planRepo.ReviewedDays(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	reviewed := make(map[localdate.Day]bool, len(days))
	for _, d := range days {
		reviewed[d] = true
	}

	cursor := localdate.At(now, loc)
	if !reviewed[cursor] {
		cursor = cursor.Shift(loc, -1)
	}

	streak := 0
	for reviewed[cursor] {
		streak++
		cursor = cursor.Shift(loc, -1)
	}
	return streak, nil
}

// Weekly aggregates the ISO week containing ref in the user's timezone.
func (s *StatsService) Weekly(ctx context.Context, user *model.User, ref time.Time) (*WeeklyStats, error) {
	loc, err := localdate.Load(user.Timezone)
	if err != nil {
		return nil, err
	}

	monday, sunday := localdate.Week(localdate.At(ref, loc), loc)
	plans, err := s.planRepo.PlansBetween(ctx, user.ID, monday, sunday)
	if err != nil {
		return nil, err
	}

	stats := &WeeklyStats{WeekStart: monday, WeekEnd: sunday}
	areaTallies := make(map[uint]*AreaStat)

	for _, plan := range plans {
		stats.PlannedDays++
		for _, task := range plan.Tasks {
			stats.TotalTasks++
			done := task.Status == model.TaskDone
			if done {
				stats.DoneTasks++
			}
			if task.AreaID != nil {
				tally, ok := areaTallies[*task.AreaID]
				if !ok {
					tally = &AreaStat{}
					areaTallies[*task.AreaID] = tally
				}
				tally.Total++
				if done {
					tally.Done++
				}
			}
		}
	}

	if stats.TotalTasks > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.DoneTasks) / float64(stats.TotalTasks) * 100))
	}
	if stats.PlannedDays > 0 {
		stats.AvgTasksPerDay = float64(stats.TotalTasks) / float64(stats.PlannedDays)
	}

	if len(areaTallies) > 0 {
		areas, err := s.areaRepo.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		names := make(map[uint]string, len(areas))
		for _, a := range areas {
			names[a.ID] = a.Name
		}
		for id, tally := range areaTallies {
			tally.Name = names[id]
			stats.Areas = append(stats.Areas, *tally)
		}
		sort.Slice(stats.Areas, func(i, j int) bool { return stats.Areas[i].Name < stats.Areas[j].Name })
	}

	return stats, nil
}
