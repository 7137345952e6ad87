package offerings

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tredicik/consult-service/internal/availability"
	"github.com/tredicik/consult-service/internal/commerce"
)

// Offering is one bookable consultation package with its scheduling
// metadata, normalized from the platform catalog.
type Offering struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	PackageType        string   `json:"package_type"`
	DurationMinutes    int      `json:"duration_minutes"`
	Price              float64  `json:"price"`
	SalePrice          *float64 `json:"sale_price,omitempty"`
	ImageURL           string   `json:"image_url,omitempty"`
	Includes           []string `json:"includes"`
	BufferMinutes      int      `json:"buffer_minutes"`
	AdvanceBookingDays int      `json:"advance_booking_days"`
	MaxBookingDays     int      `json:"max_booking_days"`
	Popular            bool     `json:"popular"`
}

// Defaults fill scheduling metadata the platform catalog omits.
type Defaults struct {
	BufferMinutes      int
	AdvanceBookingDays int
	MaxBookingDays     int
}

func (d Defaults) withFallbacks() Defaults {
	if d.BufferMinutes <= 0 {
		d.BufferMinutes = availability.DefaultBufferMinutes
	}
	if d.AdvanceBookingDays <= 0 {
		d.AdvanceBookingDays = 1
	}
	if d.MaxBookingDays <= 0 {
		d.MaxBookingDays = 90
	}
	return d
}

// Catalog interface over the platform product listing, narrowed so tests can
// stub it.
type Catalog interface {
	Products(ctx context.Context) ([]commerce.Product, error)
}

// Source resolves consultation offerings from the platform catalog, caching
// results briefly and falling back to the built-in packages when the
// platform is unreachable. The storefront stays bookable either way.
type Source struct {
	catalog  Catalog
	logger   *slog.Logger
	defaults Defaults
	cacheTTL time.Duration

	mu        sync.Mutex
	cached    []Offering
	fetchedAt time.Time
}

func NewSource(catalog Catalog, logger *slog.Logger, defaults Defaults, cacheTTL time.Duration) *Source {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Source{
		catalog:  catalog,
		logger:   logger,
		defaults: defaults.withFallbacks(),
		cacheTTL: cacheTTL,
	}
}

// List returns the current consultation offerings.
func (s *Source) List(ctx context.Context) []Offering {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.fetchedAt) < s.cacheTTL {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	fetched, err := s.fetch(ctx)
	if err != nil || len(fetched) == 0 {
		if err != nil {
			s.logger.Warn("offering catalog fetch failed; using fallback packages", "err", err)
		}
		return FallbackPackages(s.defaults)
	}

	s.mu.Lock()
	s.cached = fetched
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return fetched
}

// ByID resolves one offering.
func (s *Source) ByID(ctx context.Context, id int64) (Offering, bool) {
	for _, o := range s.List(ctx) {
		if o.ID == id {
			return o, true
		}
	}
	return Offering{}, false
}

func (s *Source) fetch(ctx context.Context) ([]Offering, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}
	var out []Offering
	for _, p := range products {
		if !isConsultation(p) {
			continue
		}
		out = append(out, fromProduct(p, s.defaults))
	}
	return out, nil
}

// isConsultation keeps service-type products whose name marks them as a
// consultation or session; the catalog mixes these with merchandise.
func isConsultation(p commerce.Product) bool {
	if !strings.EqualFold(p.OfferingType, "service") {
		return false
	}
	name := strings.ToLower(p.Name)
	return strings.Contains(name, "consultation") || strings.Contains(name, "session")
}

func fromProduct(p commerce.Product, d Defaults) Offering {
	meta := p.Metadata
	o := Offering{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		PackageType:        meta.PackageType,
		DurationMinutes:    meta.DurationMinutes,
		Price:              p.UnitPrice(),
		SalePrice:          p.SalePrice,
		ImageURL:           p.ImageURL,
		Includes:           meta.FeatureList(),
		BufferMinutes:      meta.BufferMinutes,
		AdvanceBookingDays: meta.AdvanceBookingDays,
		MaxBookingDays:     meta.MaxBookingDays,
		Popular:            meta.Popular,
	}
	if o.PackageType == "" {
		o.PackageType = "discovery"
	}
	if o.DurationMinutes <= 0 {
		o.DurationMinutes = 30
	}
	if o.BufferMinutes <= 0 {
		o.BufferMinutes = d.BufferMinutes
	}
	if o.AdvanceBookingDays <= 0 {
		o.AdvanceBookingDays = d.AdvanceBookingDays
	}
	if o.MaxBookingDays <= 0 {
		o.MaxBookingDays = d.MaxBookingDays
	}
	if o.Includes == nil {
		o.Includes = []string{}
	}
	return o
}

// BookingWindow returns the earliest and latest bookable dates for an
// offering: advance-notice days out through the maximum horizon.
func BookingWindow(o Offering, now time.Time) (min, max availability.Date) {
	today := availability.DateOf(now)
	return today.AddDays(o.AdvanceBookingDays), today.AddDays(o.MaxBookingDays)
}

// FallbackPackages are the tenant's standing consultation packages, served
// when the platform catalog is unavailable.
func FallbackPackages(d Defaults) []Offering {
	d = d.withFallbacks()
	return []Offering{
		{
			ID:          1,
			Name:        "1 Hour Consultation",
			Description: "Focused one-on-one consultation session",
			PackageType: "standard",
			Price:       2500,
			Includes: []string{
				"One-on-one session",
				"Strategic guidance",
				"Actionable insights",
				"Post-session summary",
			},
			DurationMinutes:    60,
			BufferMinutes:      d.BufferMinutes,
			AdvanceBookingDays: d.AdvanceBookingDays,
			MaxBookingDays:     d.MaxBookingDays,
		},
		{
			ID:          2,
			Name:        "2 Hours Deep Dive",
			Description: "In-depth consultation for comprehensive strategies",
			PackageType: "strategy",
			Price:       4000,
			Includes: []string{
				"Extended one-on-one session",
				"Deep strategy development",
				"Comprehensive business audit",
				"Detailed action plan",
				"Follow-up email support",
			},
			DurationMinutes:    120,
			BufferMinutes:      d.BufferMinutes,
			AdvanceBookingDays: d.AdvanceBookingDays,
			MaxBookingDays:     d.MaxBookingDays,
			Popular:            true,
		},
		{
			ID:          3,
			Name:        "Live Group Session Teaching",
			Description: "Interactive training for corporate teams",
			PackageType: "group",
			Price:       15000,
			Includes: []string{
				"2-hour interactive training",
				"5-10 participants",
				"Social media strategy",
				"Marketing best practices",
				"Q&A session",
				"Course materials included",
			},
			DurationMinutes:    120,
			BufferMinutes:      30,
			AdvanceBookingDays: d.AdvanceBookingDays,
			MaxBookingDays:     d.MaxBookingDays,
		},
	}
}
