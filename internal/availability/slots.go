package availability

import "time"

const (
	// StepMinutes is the spacing of the candidate slot grid.
	StepMinutes = 30

	// DefaultBufferMinutes is the cooldown after a consultation before the
	// next one may start, used when the offering does not override it.
	DefaultBufferMinutes = 15
)

// BookedInterval is one already-reserved consultation, derived from the
// commerce platform's order history or from a local hold.
type BookedInterval struct {
	Date       Date
	Start      ClockTime
	End        ClockTime
	OfferingID int64
}

// Slot is a candidate consultation start time. Reason is set only when the
// slot is not available.
type Slot struct {
	Start     ClockTime `json:"time"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// Overlaps reports whether a candidate booking starting at start and running
// durationMinutes collides with the booked interval [bookedStart, bookedEnd).
// Intervals are half-open: a candidate ending exactly when a booking starts,
// or starting exactly when one ends, does not overlap.
func Overlaps(start ClockTime, durationMinutes int, bookedStart, bookedEnd ClockTime) bool {
	cs := start.Minutes()
	ce := cs + durationMinutes
	return cs < bookedEnd.Minutes() && bookedStart.Minutes() < ce
}

// IsAvailable reports whether a consultation of durationMinutes starting at
// start on date conflicts with none of the booked intervals. Intervals on
// other dates are ignored.
func IsAvailable(date Date, start ClockTime, durationMinutes int, booked []BookedInterval) bool {
	for _, b := range booked {
		if b.Date != date {
			continue
		}
		if Overlaps(start, durationMinutes, b.Start, b.End) {
			return false
		}
	}
	return true
}

// GenerateSlots enumerates candidate start times for date on a fixed
// 30-minute grid beginning at the day's opening time. A candidate is emitted
// only when the consultation plus its buffer fits before closing; it is
// flagged unavailable when it overlaps a booked interval. When date is the
// current day (per the injected now), candidates at or before the current
// wall-clock time are skipped entirely. A day with no configured hours
// yields no slots.
//
// The result is ascending by start time and deterministic for fixed inputs
// and a fixed now, so callers can run it twice: once optimistically with no
// booked intervals, and again after authoritative booking data arrives.
func GenerateSlots(date Date, durationMinutes int, hours WeeklyHours, booked []BookedInterval, bufferMinutes int, now time.Time) []Slot {
	dayHours, open := hours.ForDate(date)
	if !open || durationMinutes <= 0 {
		return nil
	}
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}

	totalSpan := durationMinutes + bufferMinutes
	isToday := date == DateOf(now)
	nowClock := clockOf(now)

	var slots []Slot
	for cur := dayHours.Open; cur.Before(dayHours.Close); {
		next, err := cur.Add(StepMinutes)

		if isToday && cur.Compare(nowClock) <= 0 {
			// Past slots are never offered for the current day.
		} else if end, endErr := cur.Add(totalSpan); endErr == nil && end.Compare(dayHours.Close) <= 0 {
			slot := Slot{Start: cur, Available: IsAvailable(date, cur, durationMinutes, booked)}
			if !slot.Available {
				slot.Reason = "Booked"
			}
			slots = append(slots, slot)
		}

		if err != nil {
			// Stepping past midnight ends the walk; the closing time was
			// unreachable anyway.
			break
		}
		cur = next
	}
	return slots
}
