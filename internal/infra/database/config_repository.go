package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

// ConfigRepository loads the tenant/location configuration the dashboard
// collaborator edits. The monitor only ever reads it, once per cycle boundary.
type ConfigRepository struct {
	DB *sql.DB
}

func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{DB: db}
}

func (r *ConfigRepository) LoadSnapshot(ctx context.Context) (*entity.ConfigSnapshot, error) {
	snap := &entity.ConfigSnapshot{LoadedAt: time.Now()}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, host_id, api_token, enabled,
		       COALESCE(business_hours, 'null'::jsonb)::text,
		       business_interval_min, offhours_interval_min,
		       created_at, updated_at
		FROM tenants
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("load tenants failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t entity.Tenant
		var hoursJSON string
		if err := rows.Scan(
			&t.ID, &t.Name, &t.HostID, &t.APIToken, &t.Enabled,
			&hoursJSON, &t.BusinessIntervalMin, &t.OffHoursIntervalMin,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tenant failed: %w", err)
		}
		if hoursJSON != "" && hoursJSON != "null" {
			if err := json.Unmarshal([]byte(hoursJSON), &t.Hours); err != nil {
				return nil, fmt.Errorf("tenant %s business_hours invalid: %w", t.Name, err)
			}
		}
		snap.Tenants = append(snap.Tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants failed: %w", err)
	}

	locRows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, spreadsheet_id, tab_name, tenant_id, source_id,
		       enabled, COALESCE(notify_email, ''), cursor, sent_count,
		       created_at, updated_at
		FROM locations
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("load locations failed: %w", err)
	}
	defer locRows.Close()

	for locRows.Next() {
		var l entity.Location
		if err := locRows.Scan(
			&l.ID, &l.Name, &l.SpreadsheetID, &l.TabName, &l.TenantID, &l.SourceID,
			&l.Enabled, &l.NotifyEmail, &l.Cursor, &l.SentCount,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan location failed: %w", err)
		}
		snap.Locations = append(snap.Locations, l)
	}
	if err := locRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations failed: %w", err)
	}

	return snap, nil
}

// ListCounts backs the dashboard's cumulative per-location counters.
func (r *ConfigRepository) ListCounts(ctx context.Context) ([]entity.LocationCount, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, sent_count FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list counts failed: %w", err)
	}
	defer rows.Close()

	var counts []entity.LocationCount
	for rows.Next() {
		var c entity.LocationCount
		if err := rows.Scan(&c.LocationID, &c.Name, &c.SentCount); err != nil {
			return nil, fmt.Errorf("scan count failed: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
