package availability

import (
	"reflect"
	"testing"
	"time"
)

func mustClock(t *testing.T, s string) ClockTime {
	t.Helper()
	ct, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q) failed: %v", s, err)
	}
	return ct
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) failed: %v", s, err)
	}
	return d
}

func TestOverlaps_Boundaries(t *testing.T) {
	tests := []struct {
		name        string
		start       string
		duration    int
		bookedStart string
		bookedEnd   string
		want        bool
	}{
		{name: "candidate ends when booking starts", start: "10:00", duration: 30, bookedStart: "10:30", bookedEnd: "11:00", want: false},
		{name: "candidate starts when booking ends", start: "11:00", duration: 30, bookedStart: "10:30", bookedEnd: "11:00", want: false},
		{name: "candidate contains booking", start: "10:00", duration: 60, bookedStart: "10:30", bookedEnd: "11:00", want: true},
		{name: "booking contains candidate", start: "10:40", duration: 10, bookedStart: "10:30", bookedEnd: "11:00", want: true},
		{name: "candidate starts inside booking", start: "10:45", duration: 60, bookedStart: "10:30", bookedEnd: "11:00", want: true},
		{name: "candidate ends inside booking", start: "10:00", duration: 45, bookedStart: "10:30", bookedEnd: "11:00", want: true},
		{name: "disjoint before", start: "08:00", duration: 60, bookedStart: "10:30", bookedEnd: "11:00", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(mustClock(t, tc.start), tc.duration, mustClock(t, tc.bookedStart), mustClock(t, tc.bookedEnd))
			if got != tc.want {
				t.Errorf("Overlaps(%s+%dm vs %s-%s) = %v, want %v", tc.start, tc.duration, tc.bookedStart, tc.bookedEnd, got, tc.want)
			}
		})
	}
}

func TestIsAvailable_FiltersByDate(t *testing.T) {
	monday := mustDate(t, "2026-01-26")
	tuesday := mustDate(t, "2026-01-27")
	booked := []BookedInterval{
		{Date: tuesday, Start: mustClock(t, "10:00"), End: mustClock(t, "11:00"), OfferingID: 1},
	}
	if !IsAvailable(monday, mustClock(t, "10:00"), 60, booked) {
		t.Error("booking on another date should not block the slot")
	}
	if IsAvailable(tuesday, mustClock(t, "10:00"), 60, booked) {
		t.Error("same-date booking should block the slot")
	}
}

// farPast is a fixed "now" well before any test date, so the is-today skip
// never fires unless a test wants it to.
var farPast = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestGenerateSlots_ClosedDay(t *testing.T) {
	saturday := mustDate(t, "2026-01-31")
	slots := GenerateSlots(saturday, 60, DefaultWeeklyHours(), nil, DefaultBufferMinutes, farPast)
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}
}

func TestGenerateSlots_OpenDay(t *testing.T) {
	monday := mustDate(t, "2026-01-26")
	slots := GenerateSlots(monday, 60, DefaultWeeklyHours(), nil, 15, farPast)

	if len(slots) == 0 {
		t.Fatal("expected slots on an open weekday")
	}
	if got := slots[0].Start.String(); got != "09:00" {
		t.Errorf("first slot = %s, want 09:00", got)
	}
	// 15:30 + 60 + 15 = 16:45 fits before 17:00; 16:00 + 75 = 17:15 does not.
	if got := slots[len(slots)-1].Start.String(); got != "15:30" {
		t.Errorf("last slot = %s, want 15:30", got)
	}
	for i, s := range slots {
		if !s.Available || s.Reason != "" {
			t.Errorf("slot %s should be available with no reason", s.Start)
		}
		if i > 0 && slots[i-1].Start.Compare(s.Start) >= 0 {
			t.Errorf("slots out of order at %s", s.Start)
		}
	}
}

func TestGenerateSlots_BookedAndAbutting(t *testing.T) {
	monday := mustDate(t, "2026-01-26")
	booked := []BookedInterval{
		{Date: monday, Start: mustClock(t, "10:00"), End: mustClock(t, "11:15"), OfferingID: 7},
	}
	slots := GenerateSlots(monday, 60, DefaultWeeklyHours(), booked, 15, farPast)

	byStart := map[string]Slot{}
	for _, s := range slots {
		byStart[s.Start.String()] = s
	}
	for _, blocked := range []string{"10:00", "10:30", "11:00"} {
		s, ok := byStart[blocked]
		if !ok {
			t.Fatalf("slot %s missing from output", blocked)
		}
		if s.Available || s.Reason != "Booked" {
			t.Errorf("slot %s should be unavailable with reason Booked, got %+v", blocked, s)
		}
	}
	if s := byStart["11:30"]; !s.Available {
		t.Errorf("slot 11:30 starts after the booking ends and should be free")
	}
	// Directly against the engine: a candidate starting exactly at the
	// booked end abuts and does not conflict.
	if !IsAvailable(monday, mustClock(t, "11:15"), 60, booked) {
		t.Error("slot starting exactly at a booking's end should be available")
	}
}

func TestGenerateSlots_SkipsPastForToday(t *testing.T) {
	now := time.Date(2026, 1, 26, 14, 10, 0, 0, time.UTC) // a Monday
	today := DateOf(now)
	slots := GenerateSlots(today, 60, DefaultWeeklyHours(), nil, 15, now)

	if len(slots) == 0 {
		t.Fatal("expected afternoon slots to remain")
	}
	cutoff := clockOf(now)
	for _, s := range slots {
		if s.Start.Compare(cutoff) <= 0 {
			t.Errorf("slot %s is at or before the current time %s", s.Start, cutoff)
		}
	}
	if got := slots[0].Start.String(); got != "14:30" {
		t.Errorf("first remaining slot = %s, want 14:30", got)
	}

	// Future days enumerate from opening time no matter what the clock says.
	tomorrow := today.AddDays(1)
	slots = GenerateSlots(tomorrow, 60, DefaultWeeklyHours(), nil, 15, now)
	if got := slots[0].Start.String(); got != "09:00" {
		t.Errorf("future day first slot = %s, want 09:00", got)
	}
}

func TestGenerateSlots_SpanExceedsWindow(t *testing.T) {
	hours := WeeklyHours{
		time.Monday: {Open: mustClock(t, "09:00"), Close: mustClock(t, "10:00")},
	}
	monday := mustDate(t, "2026-01-26")
	if slots := GenerateSlots(monday, 120, hours, nil, 15, farPast); len(slots) != 0 {
		t.Fatalf("expected no slots when duration+buffer exceeds the window, got %d", len(slots))
	}
}

func TestGenerateSlots_LateWindowStopsAtMidnight(t *testing.T) {
	hours := WeeklyHours{
		time.Monday: {Open: mustClock(t, "22:00"), Close: mustClock(t, "23:45")},
	}
	monday := mustDate(t, "2026-01-26")
	slots := GenerateSlots(monday, 60, hours, nil, 15, farPast)
	// 22:00 + 75 = 23:15 fits; 22:30 + 75 = 23:45 fits exactly; 23:00 + 75
	// crosses midnight and must be rejected, not wrapped.
	want := []string{"22:00", "22:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, s := range slots {
		if s.Start.String() != want[i] {
			t.Errorf("slot %d = %s, want %s", i, s.Start, want[i])
		}
	}
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	monday := mustDate(t, "2026-01-26")
	booked := []BookedInterval{
		{Date: monday, Start: mustClock(t, "13:00"), End: mustClock(t, "14:00"), OfferingID: 2},
	}
	now := time.Date(2026, 1, 26, 10, 5, 0, 0, time.UTC)
	first := GenerateSlots(monday, 30, DefaultWeeklyHours(), booked, 15, now)
	second := GenerateSlots(monday, 30, DefaultWeeklyHours(), booked, 15, now)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs with a fixed now must produce identical output")
	}
}

func TestWeeklyHours_Validate(t *testing.T) {
	bad := WeeklyHours{
		time.Monday: {Open: mustClock(t, "17:00"), Close: mustClock(t, "09:00")},
	}
	if err := bad.Validate(); err == nil {
		t.Error("inverted hours should fail validation")
	}
	if err := DefaultWeeklyHours().Validate(); err != nil {
		t.Errorf("default hours should validate: %v", err)
	}
}
