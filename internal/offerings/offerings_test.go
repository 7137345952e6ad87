package offerings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/tredicik/consult-service/internal/commerce"
)

type stubCatalog struct {
	products []commerce.Product
	err      error
	calls    int
}

func (s *stubCatalog) Products(_ context.Context) ([]commerce.Product, error) {
	s.calls++
	return s.products, s.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestList_FiltersAndNormalizes(t *testing.T) {
	catalog := &stubCatalog{products: []commerce.Product{
		{ID: 10, Name: "1 Hour Consultation", OfferingType: "service", BasePrice: 2500,
			Metadata: commerce.ProductMetadata{DurationMinutes: 60, PackageType: "standard"}},
		{ID: 11, Name: "Branded Mug", OfferingType: "physical", BasePrice: 150},
		{ID: 12, Name: "Strategy Session", OfferingType: "service", Price: 4000,
			Metadata: commerce.ProductMetadata{DurationMinutes: 120, BufferMinutes: 30, Features: []string{"Deep dive"}}},
		{ID: 13, Name: "Coaching Call", OfferingType: "service"}, // name does not qualify
	}}
	src := NewSource(catalog, discard(), Defaults{}, time.Minute)

	got := src.List(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 offerings, got %d: %+v", len(got), got)
	}
	first := got[0]
	if first.ID != 10 || first.DurationMinutes != 60 || first.Price != 2500 {
		t.Errorf("unexpected offering %+v", first)
	}
	if first.BufferMinutes != 15 || first.AdvanceBookingDays != 1 || first.MaxBookingDays != 90 {
		t.Errorf("defaults not applied: %+v", first)
	}
	second := got[1]
	if second.BufferMinutes != 30 {
		t.Errorf("explicit buffer should win, got %d", second.BufferMinutes)
	}
	if len(second.Includes) != 1 || second.Includes[0] != "Deep dive" {
		t.Errorf("features not mapped: %v", second.Includes)
	}
}

func TestList_CachesWithinTTL(t *testing.T) {
	catalog := &stubCatalog{products: []commerce.Product{
		{ID: 10, Name: "1 Hour Consultation", OfferingType: "service",
			Metadata: commerce.ProductMetadata{DurationMinutes: 60}},
	}}
	src := NewSource(catalog, discard(), Defaults{}, time.Minute)

	src.List(context.Background())
	src.List(context.Background())
	if catalog.calls != 1 {
		t.Errorf("expected 1 catalog fetch, got %d", catalog.calls)
	}
}

func TestList_FallsBackOnError(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("connection refused")}
	src := NewSource(catalog, discard(), Defaults{BufferMinutes: 20}, time.Minute)

	got := src.List(context.Background())
	if len(got) != 3 {
		t.Fatalf("expected 3 fallback packages, got %d", len(got))
	}
	if got[0].BufferMinutes != 20 {
		t.Errorf("fallback should use tenant buffer default, got %d", got[0].BufferMinutes)
	}
	// The group package keeps its own longer buffer.
	if got[2].BufferMinutes != 30 {
		t.Errorf("group package buffer = %d, want 30", got[2].BufferMinutes)
	}
}

func TestByID(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("down")}
	src := NewSource(catalog, discard(), Defaults{}, time.Minute)

	if _, ok := src.ByID(context.Background(), 999); ok {
		t.Error("unknown id should not resolve")
	}
	o, ok := src.ByID(context.Background(), 2)
	if !ok || o.Name != "2 Hours Deep Dive" {
		t.Errorf("ByID(2) = %+v, %v", o, ok)
	}
}

func TestBookingWindow(t *testing.T) {
	now := time.Date(2026, 1, 26, 12, 0, 0, 0, time.UTC)
	min, max := BookingWindow(Offering{AdvanceBookingDays: 1, MaxBookingDays: 90}, now)
	if min.String() != "2026-01-27" {
		t.Errorf("min = %s", min)
	}
	if max.String() != "2026-04-26" {
		t.Errorf("max = %s", max)
	}
}
