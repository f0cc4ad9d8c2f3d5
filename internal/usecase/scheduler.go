package usecase

import (
	"strings"
	"time"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

// Fallback when a tenant has no schedule or no intervals configured.
const DefaultIntervalMin = 15

// IsOpen reports whether now falls inside the tenant's business hours.
// The window is half-open: open hour inclusive, close hour exclusive.
// A tenant without a configured schedule is always open.
func IsOpen(tenant *entity.Tenant, now time.Time) bool {
	if len(tenant.Hours) == 0 {
		return true
	}

	day := strings.ToLower(now.Weekday().String())
	window, ok := tenant.Hours[day]
	if !ok || len(window) < 2 {
		return false // closed that day
	}

	hour := now.Hour()
	return hour >= window[0] && hour < window[1]
}

// IntervalFor returns the polling interval that applies to the tenant right now.
func IntervalFor(tenant *entity.Tenant, now time.Time) time.Duration {
	minutes := tenant.OffHoursIntervalMin
	if IsOpen(tenant, now) {
		minutes = tenant.BusinessIntervalMin
	}
	if minutes <= 0 {
		minutes = DefaultIntervalMin
	}
	return time.Duration(minutes) * time.Minute
}

// GlobalInterval derives the daemon's sleep as the minimum interval across
// enabled tenants that have at least one enabled location. Never zero.
func GlobalInterval(snap *entity.ConfigSnapshot, now time.Time) time.Duration {
	hasLocation := make(map[string]bool)
	for _, loc := range snap.Locations {
		if loc.Enabled {
			hasLocation[loc.TenantID] = true
		}
	}

	best := time.Duration(0)
	for i := range snap.Tenants {
		t := &snap.Tenants[i]
		if !t.Enabled || !hasLocation[t.ID] {
			continue
		}
		iv := IntervalFor(t, now)
		if best == 0 || iv < best {
			best = iv
		}
	}

	if best <= 0 {
		best = DefaultIntervalMin * time.Minute
	}
	return best
}
