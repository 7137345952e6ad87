package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tredicik/consult-service/internal/availability"
)

func writeTenantFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenant.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTenantDefaults(t *testing.T) {
	tenant, err := LoadTenant("")
	if err != nil {
		t.Fatal(err)
	}
	if tenant.ID != "default" {
		t.Fatalf("ID = %q", tenant.ID)
	}
	d := tenant.Defaults
	if d.BufferMinutes != 15 || d.AdvanceBookingDays != 1 || d.MaxBookingDays != 90 {
		t.Fatalf("defaults = %+v", d)
	}
	if _, open := tenant.Hours.ForDate(mustDate(t, "2026-01-26")); !open {
		t.Fatal("default hours should cover Monday")
	}
	if _, open := tenant.Hours.ForDate(mustDate(t, "2026-01-25")); open {
		t.Fatal("default hours should be closed on Sunday")
	}
}

func TestLoadTenantFromFile(t *testing.T) {
	path := writeTenantFile(t, strings.TrimSpace(`
tenant:
  id: acme
  name: Acme Consulting
booking:
  buffer_minutes: 20
  advance_days: 2
  max_days: 30
hours:
  tuesday: "10:00-18:00"
  saturday: closed
cors:
  allowed_origins:
    - https://shop.acme.example
`))

	tenant, err := LoadTenant(path)
	if err != nil {
		t.Fatal(err)
	}
	if tenant.ID != "acme" || tenant.Name != "Acme Consulting" {
		t.Fatalf("identity = %q %q", tenant.ID, tenant.Name)
	}
	if tenant.Defaults.BufferMinutes != 20 || tenant.Defaults.AdvanceBookingDays != 2 || tenant.Defaults.MaxBookingDays != 30 {
		t.Fatalf("defaults = %+v", tenant.Defaults)
	}
	if len(tenant.Hours) != 1 {
		t.Fatalf("hours = %v, want only tuesday", tenant.Hours)
	}
	dh, ok := tenant.Hours[time.Tuesday]
	if !ok || dh.Open.String() != "10:00" || dh.Close.String() != "18:00" {
		t.Fatalf("tuesday = %+v ok=%v", dh, ok)
	}
	if len(tenant.AllowedOrigins) != 1 || tenant.AllowedOrigins[0] != "https://shop.acme.example" {
		t.Fatalf("origins = %v", tenant.AllowedOrigins)
	}
}

func TestLoadTenantRejectsBadHours(t *testing.T) {
	for name, body := range map[string]string{
		"bad weekday": "hours:\n  funday: \"09:00-17:00\"\n",
		"no dash":     "hours:\n  monday: \"09:00 17:00\"\n",
		"bad clock":   "hours:\n  monday: \"9am-5pm\"\n",
		"inverted":    "hours:\n  monday: \"17:00-09:00\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeTenantFile(t, body)
			if _, err := LoadTenant(path); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func mustDate(t *testing.T, s string) availability.Date {
	t.Helper()
	d, err := availability.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
