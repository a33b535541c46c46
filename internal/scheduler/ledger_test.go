package scheduler

import (
	"testing"
	"time"
)

func TestMarkOnceFiresExactlyOnce(t *testing.T) {
	ledger := NewLedger()
	now := time.Date(2024, 5, 13, 8, 2, 0, 0, time.UTC)

	if !ledger.MarkOnce(1, TriggerMorning, "2024-05-13", "08:00", now) {
		t.Fatal("first mark must report true")
	}
	if ledger.MarkOnce(1, TriggerMorning, "2024-05-13", "08:00", now.Add(3*time.Minute)) {
		t.Fatal("repeat mark in the same slot must report false")
	}
}

func TestMarkOnceSlotsAreIndependent(t *testing.T) {
	ledger := NewLedger()
	now := time.Date(2024, 5, 13, 8, 2, 0, 0, time.UTC)

	if !ledger.MarkOnce(1, TriggerMorning, "2024-05-13", "08:00", now) {
		t.Fatal("first mark must report true")
	}

	// Another user, another trigger, another day and another configured
	// time each get their own slot.
	if !ledger.MarkOnce(2, TriggerMorning, "2024-05-13", "08:00", now) {
		t.Fatal("different user must be independent")
	}
	if !ledger.MarkOnce(1, TriggerEvening, "2024-05-13", "08:00", now) {
		t.Fatal("different trigger must be independent")
	}
	if !ledger.MarkOnce(1, TriggerMorning, "2024-05-14", "08:00", now) {
		t.Fatal("different day must be independent")
	}
	if !ledger.MarkOnce(1, TriggerMidday, "2024-05-13", "13:00", now) {
		t.Fatal("different configured time must be independent")
	}
}

func TestLedgerEvictsStaleEntries(t *testing.T) {
	ledger := NewLedger()
	start := time.Date(2024, 5, 13, 8, 2, 0, 0, time.UTC)

	ledger.MarkOnce(1, TriggerMorning, "2024-05-13", "08:00", start)
	ledger.MarkOnce(1, TriggerEvening, "2024-05-13", "20:00", start.Add(12*time.Hour))
	if ledger.Len() != 2 {
		t.Fatalf("expected 2 live entries, got %d", ledger.Len())
	}

	// 49 hours later the morning entry is stale, the evening one is not.
	later := start.Add(49 * time.Hour)
	if !ledger.MarkOnce(1, TriggerMorning, "2024-05-15", "08:00", later) {
		t.Fatal("new slot must fire")
	}
	if ledger.Len() != 2 {
		t.Fatalf("expected stale entry evicted, got %d live", ledger.Len())
	}
}
