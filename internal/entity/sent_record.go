package entity

import (
	"context"
	"time"
)

// SentRecord is the write-once proof that a lead hash was delivered for a
// location. Queried before every delivery attempt; never updated.
type SentRecord struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	LeadHash   string    `json:"lead_hash"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type TrackerRepositoryInterface interface {
	IsSent(ctx context.Context, locationID, leadHash string) (bool, error)

	// RecordDelivery writes the SentRecord and advances the location cursor and
	// cumulative count in a single transaction.
	RecordDelivery(ctx context.Context, locationID, leadHash, email string, newCursor int) error

	// AdvanceCursor moves the cursor without a SentRecord (failed or skipped rows).
	AdvanceCursor(ctx context.Context, locationID string, newCursor int) error

	// Reset clears all SentRecords and zeroes every cursor and cumulative count.
	Reset(ctx context.Context) error
}
