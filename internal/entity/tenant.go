package entity

import (
	"context"
	"time"
)

// BusinessHours maps a lowercase weekday name ("monday"..."sunday") to an
// [openHour, closeHour) pair in 24h local time. A missing or null day is closed.
type BusinessHours map[string][]int

type Tenant struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	HostID              string        `json:"host_id"`
	APIToken            string        `json:"-"`
	Enabled             bool          `json:"enabled"`
	Hours               BusinessHours `json:"business_hours,omitempty"`
	BusinessIntervalMin int           `json:"business_interval_min"`
	OffHoursIntervalMin int           `json:"offhours_interval_min"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// ConfigSnapshot is an immutable view of the tenant/location configuration,
// loaded once per cycle boundary. Never mutated mid-cycle.
type ConfigSnapshot struct {
	Tenants   []Tenant   `json:"tenants"`
	Locations []Location `json:"locations"`
	LoadedAt  time.Time  `json:"loaded_at"`
}

// TenantByID resolves a location's owning tenant inside the snapshot.
func (s *ConfigSnapshot) TenantByID(id string) *Tenant {
	for i := range s.Tenants {
		if s.Tenants[i].ID == id {
			return &s.Tenants[i]
		}
	}
	return nil
}

func (s *ConfigSnapshot) LocationByID(id string) *Location {
	for i := range s.Locations {
		if s.Locations[i].ID == id {
			return &s.Locations[i]
		}
	}
	return nil
}

type ConfigRepositoryInterface interface {
	LoadSnapshot(ctx context.Context) (*ConfigSnapshot, error)
}
