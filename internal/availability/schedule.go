package availability

import (
	"fmt"
	"time"
)

// DayHours is the open/close window for one weekday.
type DayHours struct {
	Open  ClockTime
	Close ClockTime
}

// WeeklyHours maps each weekday to its business hours. A missing entry means
// the tenant takes no bookings that day.
type WeeklyHours map[time.Weekday]DayHours

// DefaultWeeklyHours is the fallback schedule when a tenant has not
// configured business hours: Monday to Friday, 09:00 to 17:00.
func DefaultWeeklyHours() WeeklyHours {
	open := ClockTime{Hour: 9}
	close := ClockTime{Hour: 17}
	return WeeklyHours{
		time.Monday:    {Open: open, Close: close},
		time.Tuesday:   {Open: open, Close: close},
		time.Wednesday: {Open: open, Close: close},
		time.Thursday:  {Open: open, Close: close},
		time.Friday:    {Open: open, Close: close},
	}
}

// Validate checks that every configured day opens before it closes.
func (h WeeklyHours) Validate() error {
	for day, hours := range h {
		if hours.Open.Compare(hours.Close) >= 0 {
			return fmt.Errorf("%s: open %s must be before close %s", day, hours.Open, hours.Close)
		}
	}
	return nil
}

// ForDate returns the hours in effect on the given date, and whether the
// tenant is open at all that day.
func (h WeeklyHours) ForDate(d Date) (DayHours, bool) {
	hours, ok := h[d.Weekday()]
	return hours, ok
}
