package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// ClockTime is a wall-clock time of day in 24-hour format, with no date or
// timezone attached. Times are interpreted in the tenant's local zone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" string. Both components must be numeric and in
// range; anything else is rejected rather than producing a bogus value.
func ParseClock(s string) (ClockTime, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: bad minute", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: out of range", s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String formats the time as zero-padded "HH:MM".
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the time as minutes since midnight.
func (t ClockTime) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Compare returns a negative value when t is before o, zero when equal, and a
// positive value when t is after o.
func (t ClockTime) Compare(o ClockTime) int {
	return t.Minutes() - o.Minutes()
}

// Before reports whether t is strictly earlier in the day than o.
func (t ClockTime) Before(o ClockTime) bool {
	return t.Minutes() < o.Minutes()
}

// Add returns the time delta minutes later (or earlier, for negative deltas).
// The result must stay within the same day; crossing midnight in either
// direction is an error, never a silent wrap.
func (t ClockTime) Add(delta int) (ClockTime, error) {
	total := t.Minutes() + delta
	if total < 0 || total >= minutesPerDay {
		return ClockTime{}, fmt.Errorf("clock time %s%+dm crosses midnight", t, delta)
	}
	return ClockTime{Hour: total / 60, Minute: total % 60}, nil
}

// MarshalJSON renders the time as a quoted "HH:MM" string.
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a quoted "HH:MM" string.
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func unquote(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", fmt.Errorf("expected a JSON string, got %s", data)
	}
	return string(data[1 : len(data)-1]), nil
}

// clockOf extracts the ClockTime of t in its own location.
func clockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}
