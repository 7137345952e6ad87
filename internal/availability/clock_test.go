package availability

import (
	"testing"
	"time"
)

func TestParseClock_RoundTrip(t *testing.T) {
	for _, s := range []string{"00:00", "09:00", "09:05", "12:30", "23:59"} {
		parsed, err := ParseClock(s)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", s, err)
		}
		if got := parsed.String(); got != s {
			t.Errorf("ParseClock(%q).String() = %q", s, got)
		}
	}
}

func TestParseClock_Rejects(t *testing.T) {
	for _, s := range []string{"", "9", "09", "09:", ":30", "09:00:00", "24:00", "12:60", "-1:00", "ab:cd", "09.30"} {
		if _, err := ParseClock(s); err == nil {
			t.Errorf("ParseClock(%q) should fail", s)
		}
	}
}

func TestClockTime_Add(t *testing.T) {
	tests := []struct {
		start   string
		delta   int
		want    string
		wantErr bool
	}{
		{start: "09:00", delta: 90, want: "10:30"},
		{start: "09:00", delta: 0, want: "09:00"},
		{start: "10:30", delta: -45, want: "09:45"},
		{start: "23:00", delta: 59, want: "23:59"},
		{start: "23:00", delta: 60, wantErr: true},
		{start: "00:15", delta: -30, wantErr: true},
	}
	for _, tc := range tests {
		start, err := ParseClock(tc.start)
		if err != nil {
			t.Fatalf("ParseClock(%q) failed: %v", tc.start, err)
		}
		got, err := start.Add(tc.delta)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s + %dm should fail, got %s", tc.start, tc.delta, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s + %dm failed: %v", tc.start, tc.delta, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("%s + %dm = %s, want %s", tc.start, tc.delta, got, tc.want)
		}
	}
}

func TestClockTime_AddNeverMovesBackward(t *testing.T) {
	for hour := 0; hour < 24; hour++ {
		start := ClockTime{Hour: hour, Minute: 10}
		for _, delta := range []int{0, 1, 15, 30, 75, 180} {
			got, err := start.Add(delta)
			if err != nil {
				continue // crossed midnight, rejected by design
			}
			if got.Compare(start) < 0 {
				t.Fatalf("%s + %dm = %s moved backward", start, delta, got)
			}
		}
	}
}

func TestClockTime_Compare(t *testing.T) {
	a := ClockTime{Hour: 9, Minute: 30}
	b := ClockTime{Hour: 14, Minute: 0}
	if a.Compare(b) >= 0 {
		t.Errorf("expected %s < %s", a, b)
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected %s > %s", b, a)
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected %s == %s", a, a)
	}
	if !a.Before(b) || b.Before(a) {
		t.Errorf("Before inconsistent with Compare for %s, %s", a, b)
	}
}

func TestDate_ParseAndWeekday(t *testing.T) {
	d, err := ParseDate("2026-01-26")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Errorf("2026-01-26 should be a Monday, got %s", d.Weekday())
	}
	if d.String() != "2026-01-26" {
		t.Errorf("String() = %q", d.String())
	}
	if got := d.AddDays(5); got.Weekday() != time.Saturday {
		t.Errorf("2026-01-26 + 5 days should be a Saturday, got %s", got.Weekday())
	}
	if _, err := ParseDate("26/01/2026"); err == nil {
		t.Error("ParseDate should reject non-ISO dates")
	}
}

func TestDateOf(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 50, 0, 0, time.FixedZone("SAST", 2*3600))
	if got := DateOf(now); got != (Date{Year: 2026, Month: time.March, Day: 14}) {
		t.Errorf("DateOf = %s", got)
	}
}
