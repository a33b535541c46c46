package model

import (
	"errors"
	"fmt"
	"time"

	"dailyflow/internal/localdate"
)

// PlanStatus is the lifecycle state of a day's plan.
type PlanStatus string

const (
	// PlanDraft is the schema default. No creation path currently produces
	// it; plans are committed directly as confirmed.
	PlanDraft         PlanStatus = "draft"
	PlanConfirmed     PlanStatus = "confirmed"
	PlanReviewPending PlanStatus = "review_pending"
	PlanReviewed      PlanStatus = "reviewed"
)

// PlanSource records how a plan came to exist.
type PlanSource string

const (
	SourceManual      PlanSource = "manual"
	SourceCarriedOver PlanSource = "carried_over"
)

// ErrInvalidTransition is returned when a status change does not follow a
// legal edge of the plan state machine.
var ErrInvalidTransition = errors.New("invalid plan status transition")

var planEdges = map[PlanStatus][]PlanStatus{
	PlanDraft:         {PlanConfirmed},
	PlanConfirmed:     {PlanReviewPending},
	PlanReviewPending: {PlanReviewed},
	PlanReviewed:      {},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s PlanStatus) CanTransition(next PlanStatus) bool {
	for _, to := range planEdges[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Transition validates the edge from s to next.
func (s PlanStatus) Transition(next PlanStatus) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// Plan represents one user's intentions for exactly one local calendar day.
// (UserID, LocalDay) is unique: at most one plan per user per day.
type Plan struct {
	ID              uint          `gorm:"primaryKey"`
	UserID          uint          `gorm:"index;uniqueIndex:idx_user_local_day"`
	LocalDay        localdate.Day `gorm:"uniqueIndex:idx_user_local_day;index:idx_user_status_day"`
	Status          PlanStatus    `gorm:"default:draft;index:idx_user_status_day"`
	Source          PlanSource
	ConfirmedAt     *time.Time
	ReviewStartedAt *time.Time
	ReviewedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Tasks           []Task `gorm:"foreignKey:PlanID"`
}

// IsPlanned reports whether the day has a committed plan. Draft plans count
// as unplanned for scheduling purposes.
func (p *Plan) IsPlanned() bool {
	return p != nil && p.Status != PlanDraft
}
