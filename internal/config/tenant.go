package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tredicik/consult-service/internal/availability"
	"github.com/tredicik/consult-service/internal/offerings"
)

// Tenant describes the storefront this instance serves: identity, weekly
// business hours and the consultation defaults applied when the commerce
// platform omits them.
type Tenant struct {
	ID             string
	Name           string
	Hours          availability.WeeklyHours
	Defaults       offerings.Defaults
	AllowedOrigins []string
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadTenant reads the tenant YAML file at path. A missing path yields the
// built-in defaults so the service can run without a tenant file.
func LoadTenant(path string) (Tenant, error) {
	v := viper.New()
	v.SetEnvPrefix("CONSULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tenant.id", "default")
	v.SetDefault("tenant.name", "Consultations")
	v.SetDefault("booking.buffer_minutes", availability.DefaultBufferMinutes)
	v.SetDefault("booking.advance_days", 1)
	v.SetDefault("booking.max_days", 90)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Tenant{}, fmt.Errorf("read tenant config %s: %w", path, err)
		}
	}

	hours, err := parseHours(v.GetStringMapString("hours"))
	if err != nil {
		return Tenant{}, err
	}

	t := Tenant{
		ID:    v.GetString("tenant.id"),
		Name:  v.GetString("tenant.name"),
		Hours: hours,
		Defaults: offerings.Defaults{
			BufferMinutes:      v.GetInt("booking.buffer_minutes"),
			AdvanceBookingDays: v.GetInt("booking.advance_days"),
			MaxBookingDays:     v.GetInt("booking.max_days"),
		},
		AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
	}
	if err := t.Hours.Validate(); err != nil {
		return Tenant{}, fmt.Errorf("tenant %s: %w", t.ID, err)
	}
	return t, nil
}

// parseHours turns {"monday": "09:00-17:00", ...} into weekly hours.
// Days absent from the map are closed. An empty map means the default
// Monday through Friday schedule.
func parseHours(raw map[string]string) (availability.WeeklyHours, error) {
	if len(raw) == 0 {
		return availability.DefaultWeeklyHours(), nil
	}
	hours := availability.WeeklyHours{}
	for day, span := range raw {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in business hours", day)
		}
		span = strings.TrimSpace(span)
		if span == "" || strings.EqualFold(span, "closed") {
			continue
		}
		open, close, found := strings.Cut(span, "-")
		if !found {
			return nil, fmt.Errorf("business hours for %s must look like 09:00-17:00, got %q", day, span)
		}
		o, err := availability.ParseClock(strings.TrimSpace(open))
		if err != nil {
			return nil, fmt.Errorf("business hours for %s: %w", day, err)
		}
		c, err := availability.ParseClock(strings.TrimSpace(close))
		if err != nil {
			return nil, fmt.Errorf("business hours for %s: %w", day, err)
		}
		hours[wd] = availability.DayHours{Open: o, Close: c}
	}
	return hours, nil
}
