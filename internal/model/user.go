package model

import (
	"strings"
	"time"
)

// Default settings applied on onboarding.
const (
	DefaultTimezone     = "UTC"
	DefaultLanguage     = "ru"
	DefaultMorningTime  = "08:00"
	DefaultEveningTime  = "20:00"
	DefaultReminderTime = "13:00"
)

// User stores Telegram identity together with planning settings: the IANA
// timezone, the language tag and the time-of-day slots the scheduler
// evaluates. ReminderTimes holds 1-3 comma-separated HH:MM values,
// ReminderCount mirrors the list length.
type User struct {
	ID            uint  `gorm:"primaryKey"`
	TelegramID    int64 `gorm:"uniqueIndex"`
	FirstName     string
	LastName      string
	Username      string
	Timezone      string `gorm:"default:UTC"`
	Language      string `gorm:"default:ru"`
	MorningTime   string
	EveningTime   string
	ReminderTimes string
	ReminderCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReminderTimeList splits the stored CSV into individual HH:MM values.
func (u User) ReminderTimeList() []string {
	if u.ReminderTimes == "" {
		return nil
	}
	raw := strings.Split(u.ReminderTimes, ",")
	times := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t != "" {
			times = append(times, t)
		}
	}
	return times
}
