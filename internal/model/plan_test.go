package model

import (
	"errors"
	"testing"
)

func TestPlanStatusTransitions(t *testing.T) {
	legal := []struct {
		from, to PlanStatus
	}{
		{PlanDraft, PlanConfirmed},
		{PlanConfirmed, PlanReviewPending},
		{PlanReviewPending, PlanReviewed},
	}
	for _, edge := range legal {
		if err := edge.from.Transition(edge.to); err != nil {
			t.Fatalf("expected %s -> %s to be legal: %v", edge.from, edge.to, err)
		}
	}

	illegal := []struct {
		from, to PlanStatus
	}{
		{PlanReviewed, PlanReviewPending},
		{PlanReviewed, PlanConfirmed},
		{PlanConfirmed, PlanReviewed},
		{PlanDraft, PlanReviewed},
		{PlanConfirmed, PlanConfirmed},
	}
	for _, edge := range illegal {
		err := edge.from.Transition(edge.to)
		if err == nil {
			t.Fatalf("expected %s -> %s to be rejected", edge.from, edge.to)
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	}
}

func TestIsPlanned(t *testing.T) {
	var nilPlan *Plan
	if nilPlan.IsPlanned() {
		t.Fatal("nil plan must not be planned")
	}
	if (&Plan{Status: PlanDraft}).IsPlanned() {
		t.Fatal("draft plan must not count as planned")
	}
	if !(&Plan{Status: PlanConfirmed}).IsPlanned() {
		t.Fatal("confirmed plan must count as planned")
	}
}

func TestTaskStatusRemaining(t *testing.T) {
	if !TaskPending.Remaining() || !TaskInProgress.Remaining() {
		t.Fatal("pending and in_progress are remaining")
	}
	if TaskDone.Remaining() || TaskSkipped.Remaining() {
		t.Fatal("done and skipped are not remaining")
	}
}

func TestReminderTimeList(t *testing.T) {
	u := User{ReminderTimes: "12:00, 16:30,19:00"}
	times := u.ReminderTimeList()
	if len(times) != 3 || times[0] != "12:00" || times[1] != "16:30" || times[2] != "19:00" {
		t.Fatalf("unexpected times: %v", times)
	}

	if got := (User{}).ReminderTimeList(); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
