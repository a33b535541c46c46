package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dailyflow/internal/localdate"
	"dailyflow/internal/model"
	"dailyflow/internal/service"
)

// fireWindow is how long after a configured time a trigger still counts as
// due. It must exceed the tick interval so no slot is ever skipped.
const fireWindow = 6 * time.Minute

// maxReminderTimes caps the per-user mid-day reminder slots.
const maxReminderTimes = 3

// Sender delivers a message to a Telegram user. Delivery failures are
// logged and never retried: the trigger stays marked as fired.
type Sender interface {
	SendTo(telegramID int64, text string) error
}

// UserSource lists onboarded users with their settings. Read fresh on
// every tick.
type UserSource interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// PlanSource reads plan state for trigger evaluation.
type PlanSource interface {
	GetForDay(ctx context.Context, userID uint, day localdate.Day) (*model.Plan, error)
}

// Dispatcher drives the periodic sweep: per user per tick it evaluates the
// morning-plan, mid-day reminder and evening-review triggers against the
// user's local clock and dispatches at most one message per trigger slot
// per day.
type Dispatcher struct {
	users   UserSource
	plans   PlanSource
	digest  *service.DigestService
	sender  Sender
	ledger  *Ledger
	clk     clock.Clock
	logger  *zap.SugaredLogger
	workers int
}

func NewDispatcher(users UserSource, plans PlanSource, digest *service.DigestService, sender Sender, clk clock.Clock, logger *zap.SugaredLogger, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		users:   users,
		plans:   plans,
		digest:  digest,
		sender:  sender,
		ledger:  NewLedger(),
		clk:     clk,
		logger:  logger,
		workers: workers,
	}
}

// Sweep evaluates every user once. Users are processed by a bounded worker
// pool; one user's failure never prevents evaluation of the others, and the
// collected errors are returned after the full pass.
func (d *Dispatcher) Sweep(ctx context.Context) error {
	users, err := d.users.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "list users")
	}

	var (
		mu    sync.Mutex
		swept error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, user := range users {
		user := user
		g.Go(func() error {
			if err := d.evaluateUser(ctx, user); err != nil {
				d.logger.Errorw("user sweep failed", "user", user.TelegramID, "err", err)
				mu.Lock()
				swept = multierr.Append(swept, errors.Wrapf(err, "user %d", user.TelegramID))
				mu.Unlock()
			}
			return nil
		})
	}

	// Worker closures never return an error, so Wait only reflects ctx.
	if err := g.Wait(); err != nil {
		swept = multierr.Append(swept, err)
	}
	return swept
}

// userSlots is the user's schedule resolved for one tick. Resolving it up
// front means a configuration error skips all of the user's triggers for
// the tick instead of firing a subset.
type userSlots struct {
	loc      *time.Location
	morning  int
	evening  int
	midday   []int
	middayAt []string
}

func resolveSlots(user model.User) (*userSlots, error) {
	loc, err := localdate.Load(user.Timezone)
	if err != nil {
		return nil, errors.Wrap(err, "timezone")
	}

	slots := &userSlots{loc: loc}
	if slots.morning, err = localdate.ParseClock(user.MorningTime); err != nil {
		return nil, errors.Wrap(err, "morning time")
	}
	if slots.evening, err = localdate.ParseClock(user.EveningTime); err != nil {
		return nil, errors.Wrap(err, "evening time")
	}

	times := user.ReminderTimeList()
	if len(times) > maxReminderTimes {
		times = times[:maxReminderTimes]
	}
	for _, at := range times {
		minute, err := localdate.ParseClock(at)
		if err != nil {
			return nil, errors.Wrap(err, "reminder time")
		}
		slots.midday = append(slots.midday, minute)
		slots.middayAt = append(slots.middayAt, at)
	}
	return slots, nil
}

// evaluateUser runs the user's three triggers against a single consistent
// "now". Triggers are independent; evaluation order only shapes message
// order in a burst.
func (d *Dispatcher) evaluateUser(ctx context.Context, user model.User) error {
	slots, err := resolveSlots(user)
	if err != nil {
		return err
	}

	now := d.clk.Now()
	today := localdate.At(now, slots.loc)
	nowMin := localdate.MinuteOf(now, slots.loc)

	if err := d.morning(ctx, user, slots, now, today, nowMin); err != nil {
		return err
	}
	if err := d.midday(ctx, user, slots, now, today, nowMin); err != nil {
		return err
	}
	return d.evening(ctx, user, slots, now, today, nowMin)
}

// morning fires the plan-today prompt, preceded by a one-time nudge when
// yesterday's plan was never reviewed. A day that already has a committed
// plan absorbs the trigger without a message.
func (d *Dispatcher) morning(ctx context.Context, user model.User, slots *userSlots, now time.Time, today localdate.Day, nowMin int) error {
	day := slotDay(today, slots.loc, nowMin, slots.morning)
	if day == "" {
		return nil
	}
	if !d.ledger.MarkOnce(user.ID, TriggerMorning, day, user.MorningTime, now) {
		return nil
	}

	plan, err := d.plans.GetForDay(ctx, user.ID, day)
	if err != nil {
		return errors.Wrap(err, "load plan")
	}
	if plan.IsPlanned() {
		return nil
	}

	yesterday := day.Shift(slots.loc, -1)
	prev, err := d.plans.GetForDay(ctx, user.ID, yesterday)
	if err != nil {
		return errors.Wrap(err, "load yesterday's plan")
	}
	if prev.IsPlanned() && prev.Status != model.PlanReviewed {
		if d.ledger.MarkOnce(user.ID, TriggerReviewNudge, yesterday, user.MorningTime, now) {
			d.deliver(user, d.digest.ReviewNudge(user.Language))
		}
	}

	d.deliver(user, d.digest.MorningPrompt(user.Language))
	return nil
}

// midday fires each configured reminder slot independently. Days without a
// committed plan, or with an empty one, absorb the slot silently.
func (d *Dispatcher) midday(ctx context.Context, user model.User, slots *userSlots, now time.Time, today localdate.Day, nowMin int) error {
	for i, minute := range slots.midday {
		day := slotDay(today, slots.loc, nowMin, minute)
		if day == "" {
			continue
		}
		if !d.ledger.MarkOnce(user.ID, TriggerMidday, day, slots.middayAt[i], now) {
			continue
		}
		plan, err := d.plans.GetForDay(ctx, user.ID, day)
		if err != nil {
			return errors.Wrap(err, "load plan")
		}
		if !plan.IsPlanned() || len(plan.Tasks) == 0 {
			continue
		}

		var remaining []model.Task
		for _, task := range plan.Tasks {
			if task.Status.Remaining() {
				remaining = append(remaining, task)
			}
		}
		if len(remaining) == 0 {
			d.deliver(user, d.digest.AllClear(user.Language))
			continue
		}
		d.deliver(user, d.digest.MiddayReminder(user.Language, remaining))
	}
	return nil
}

// evening fires the review-start prompt once per day. Reviewed, empty or
// unplanned days absorb the trigger.
func (d *Dispatcher) evening(ctx context.Context, user model.User, slots *userSlots, now time.Time, today localdate.Day, nowMin int) error {
	day := slotDay(today, slots.loc, nowMin, slots.evening)
	if day == "" {
		return nil
	}
	if !d.ledger.MarkOnce(user.ID, TriggerEvening, day, user.EveningTime, now) {
		return nil
	}

	plan, err := d.plans.GetForDay(ctx, user.ID, day)
	if err != nil {
		return errors.Wrap(err, "load plan")
	}
	if !plan.IsPlanned() || plan.Status == model.PlanReviewed || len(plan.Tasks) == 0 {
		return nil
	}

	d.deliver(user, d.digest.EveningPrompt(user.Language))
	return nil
}

func (d *Dispatcher) deliver(user model.User, text string) {
	if err := d.sender.SendTo(user.TelegramID, text); err != nil {
		// No retry: the slot is already marked, a stale prompt is worse
		// than a missed one.
		d.logger.Warnw("delivery failed", "user", user.TelegramID, "err", err)
	}
}

const minutesPerDay = 24 * 60

// slotDay resolves which local day a due slot belongs to, or "" when the
// slot is not due. A window that opens in the last minutes of a day keeps
// running past midnight, so a tick shortly after 00:00 still serves the
// previous day's slot under the previous day's dedup key.
func slotDay(today localdate.Day, loc *time.Location, nowMin, slotMin int) localdate.Day {
	if inWindow(nowMin, slotMin) {
		return today
	}
	if inWindow(nowMin+minutesPerDay, slotMin) {
		return today.Shift(loc, -1)
	}
	return ""
}

func inWindow(nowMin, slotMin int) bool {
	windowMin := int(fireWindow / time.Minute)
	return nowMin >= slotMin && nowMin < slotMin+windowMin
}
