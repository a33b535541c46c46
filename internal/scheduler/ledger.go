package scheduler

import (
	"sync"
	"time"

	"dailyflow/internal/localdate"
)

// TriggerType names one of the independent time-of-day conditions a tick
// evaluates.
type TriggerType string

const (
	TriggerMorning     TriggerType = "morning"
	TriggerMidday      TriggerType = "midday"
	TriggerEvening     TriggerType = "evening"
	TriggerReviewNudge TriggerType = "review_nudge"
)

// ledgerRetention bounds how long a sent marker is kept. Anything older
// can no longer collide with a live trigger window.
const ledgerRetention = 48 * time.Hour

type slotKey struct {
	userID  uint
	trigger TriggerType
	day     localdate.Day
	at      string // configured HH:MM
}

// Ledger is the in-process dedup record preventing a trigger from firing
// more than once per user per (local day, configured time). It is not
// crash-durable: a restart risks at most one duplicate notification per
// trigger, which is accepted.
type Ledger struct {
	mu   sync.Mutex
	sent map[slotKey]time.Time
}

func NewLedger() *Ledger {
	return &Ledger{sent: make(map[slotKey]time.Time)}
}

// MarkOnce records the slot as fired and reports whether this call was the
// first to do so. Stale entries are evicted lazily.
func (l *Ledger) MarkOnce(userID uint, trigger TriggerType, day localdate.Day, at string, now time.Time) bool {
	key := slotKey{userID: userID, trigger: trigger, day: day, at: at}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(now)

	if _, ok := l.sent[key]; ok {
		return false
	}
	l.sent[key] = now
	return true
}

// Len reports the number of live entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

func (l *Ledger) evict(now time.Time) {
	cutoff := now.Add(-ledgerRetention)
	for key, sentAt := range l.sent {
		if sentAt.Before(cutoff) {
			delete(l.sent, key)
		}
	}
}
