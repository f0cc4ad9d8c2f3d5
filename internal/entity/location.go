package entity

import (
	"context"
	"time"
)

type Location struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SpreadsheetID string    `json:"spreadsheet_id"`
	TabName       string    `json:"tab_name"`
	TenantID      string    `json:"tenant_id"`
	SourceID      string    `json:"source_id"` // lead-source identifier passed to the CRM
	Enabled       bool      `json:"enabled"`
	NotifyEmail   string    `json:"notify_email,omitempty"`
	Cursor        int       `json:"cursor"`     // last processed data-row count
	SentCount     int       `json:"sent_count"` // cumulative delivered since last tracker reset
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type LocationCount struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	SentCount  int    `json:"sent_count"`
}

type LocationRepositoryInterface interface {
	ListCounts(ctx context.Context) ([]LocationCount, error)
}
