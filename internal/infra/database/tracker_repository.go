package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// TrackerRepository owns the sent-record append log plus the per-location
// cursors and cumulative counts. Every mutation that spans both is one
// transaction, so a crash never leaves a row half-recorded.
type TrackerRepository struct {
	DB *sql.DB
}

func NewTrackerRepository(db *sql.DB) *TrackerRepository {
	return &TrackerRepository{DB: db}
}

func (r *TrackerRepository) IsSent(ctx context.Context, locationID, leadHash string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sent_leads WHERE location_id = $1 AND lead_hash = $2)`,
		locationID, leadHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sent lookup failed: %w", err)
	}
	return exists, nil
}

func (r *TrackerRepository) RecordDelivery(ctx context.Context, locationID, leadHash, email string, newCursor int) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record delivery begin failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sent_leads (id, location_id, lead_hash, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (location_id, lead_hash) DO NOTHING
	`, uuid.NewString(), locationID, leadHash, email)
	if err != nil {
		return fmt.Errorf("record delivery insert failed: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE locations
		SET cursor = $2, sent_count = sent_count + 1, updated_at = NOW()
		WHERE id = $1
	`, locationID, newCursor)
	if err != nil {
		return fmt.Errorf("record delivery cursor failed: %w", err)
	}

	return tx.Commit()
}

func (r *TrackerRepository) AdvanceCursor(ctx context.Context, locationID string, newCursor int) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE locations SET cursor = $2, updated_at = NOW() WHERE id = $1
	`, locationID, newCursor)
	if err != nil {
		return fmt.Errorf("advance cursor failed: %w", err)
	}
	return nil
}

// Reset wipes the tracker: every sheet gets reprocessed from row one. Sent
// records are gone after this, so use it only when a full resend is wanted.
func (r *TrackerRepository) Reset(ctx context.Context) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tracker reset begin failed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sent_leads`); err != nil {
		return fmt.Errorf("tracker reset sent_leads failed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE locations SET cursor = 0, sent_count = 0, updated_at = NOW()`); err != nil {
		return fmt.Errorf("tracker reset cursors failed: %w", err)
	}

	return tx.Commit()
}
