package localdate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical key format for a local calendar day.
// Keys in this format compare lexicographically in date order.
const Layout = "2006-01-02"

// Day is a calendar date as experienced in one user's timezone,
// used as the storage key dimension for plans.
type Day string

// Load resolves an IANA timezone name. An empty or unknown name is a
// configuration error and is never silently defaulted.
func Load(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return nil, fmt.Errorf("empty timezone")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// At converts an absolute instant into the local day it falls on.
func At(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format(Layout))
}

// Parse validates an externally supplied day key.
func Parse(s string) (Day, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", s, err)
	}
	return Day(t.Format(Layout)), nil
}

// Time anchors the day at local noon. Noon is the anchor for all day
// arithmetic: on DST transition days midnight may not exist or the day may
// be 23 or 25 hours long, and a noon anchor keeps AddDate from rolling into
// the wrong day.
func (d Day) Time(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(Layout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
}

// Shift returns the local day |days| calendar days away. d must come from
// At or Parse.
func (d Day) Shift(loc *time.Location, days int) Day {
	anchor := d.Time(loc)
	if anchor.IsZero() {
		return d
	}
	return At(anchor.AddDate(0, 0, days), loc)
}

// Before reports whether d is an earlier calendar day than other.
func (d Day) Before(other Day) bool {
	return string(d) < string(other)
}

func (d Day) String() string {
	return string(d)
}

// Week returns the Monday and Sunday of the ISO week containing d.
func Week(d Day, loc *time.Location) (monday, sunday Day) {
	anchor := d.Time(loc)
	offset := int(anchor.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	monday = d.Shift(loc, -offset)
	sunday = monday.Shift(loc, 6)
	return monday, sunday
}

// ParseClock parses a HH:MM time-of-day string into minutes from midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// MinuteOf returns the minutes-from-midnight of an instant in loc.
func MinuteOf(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}
