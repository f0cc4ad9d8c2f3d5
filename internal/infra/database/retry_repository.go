package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
)

// RetryQueueRepository persists failed deliveries and drives their
// pending_retry → resolved | dead lifecycle.
type RetryQueueRepository struct {
	DB *sql.DB
}

func NewRetryQueueRepository(db *sql.DB) *RetryQueueRepository {
	return &RetryQueueRepository{DB: db}
}

func (r *RetryQueueRepository) Enqueue(ctx context.Context, entry *entity.FailedDelivery, newCursor int) error {
	payload, err := json.Marshal(entry.Lead)
	if err != nil {
		return fmt.Errorf("enqueue payload marshal failed: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("enqueue begin failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO failed_deliveries
			(id, location_id, tenant_id, lead_hash, payload, reason, status, attempts, next_retry_at, first_failed_at, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (location_id, lead_hash) WHERE status = 'pending_retry'
		DO UPDATE SET reason = EXCLUDED.reason, attempts = failed_deliveries.attempts + 1,
		              -- a re-failed entry keeps its attempt count, so its slot must
		              -- follow the 1h/4h/24h schedule from that count, not restart at 1h
		              next_retry_at = NOW() + CASE failed_deliveries.attempts + 1
		                  WHEN 1 THEN INTERVAL '1 hour'
		                  WHEN 2 THEN INTERVAL '4 hours'
		                  ELSE INTERVAL '24 hours'
		              END,
		              last_error = EXCLUDED.last_error,
		              updated_at = NOW()
	`, entry.ID, entry.LocationID, entry.TenantID, entry.LeadHash, payload,
		entry.Reason, entity.FailedStatusPendingRetry, entry.Attempts,
		entry.NextRetryAt, entry.FirstFailedAt, entry.LastError)
	if err != nil {
		return fmt.Errorf("enqueue insert failed: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE locations SET cursor = $2, updated_at = NOW() WHERE id = $1`,
		entry.LocationID, newCursor)
	if err != nil {
		return fmt.Errorf("enqueue cursor failed: %w", err)
	}

	return tx.Commit()
}

// Due pages through pending entries whose schedule has elapsed. Keyset
// pagination keeps memory bounded regardless of queue size; the id column is
// UUID, so the cursor compares on its text form, which also accepts the empty
// first-batch cursor.
func (r *RetryQueueRepository) Due(ctx context.Context, now time.Time, limit int, afterID string) ([]entity.FailedDelivery, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, location_id, tenant_id, lead_hash, payload::text, reason, status,
		       attempts, next_retry_at, first_failed_at, COALESCE(last_error, ''), updated_at
		FROM failed_deliveries
		WHERE status = 'pending_retry' AND next_retry_at <= $1 AND id::text > $2
		ORDER BY id::text
		LIMIT $3
	`, now, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("due scan failed: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ForceDue is the --retry-failed path: every pending entry, schedule ignored.
func (r *RetryQueueRepository) ForceDue(ctx context.Context, limit int, afterID string) ([]entity.FailedDelivery, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, location_id, tenant_id, lead_hash, payload::text, reason, status,
		       attempts, next_retry_at, first_failed_at, COALESCE(last_error, ''), updated_at
		FROM failed_deliveries
		WHERE status = 'pending_retry' AND id::text > $1
		ORDER BY id::text
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("forced due scan failed: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]entity.FailedDelivery, error) {
	var entries []entity.FailedDelivery
	for rows.Next() {
		var e entity.FailedDelivery
		var payload string
		if err := rows.Scan(
			&e.ID, &e.LocationID, &e.TenantID, &e.LeadHash, &payload, &e.Reason, &e.Status,
			&e.Attempts, &e.NextRetryAt, &e.FirstFailedAt, &e.LastError, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("queue scan row failed: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Lead); err != nil {
			return nil, fmt.Errorf("queue payload decode failed (entry %s): %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RetryQueueRepository) Reschedule(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE failed_deliveries
		SET attempts = $2, next_retry_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_retry'
	`, id, attempts, nextRetryAt, lastError)
	if err != nil {
		return fmt.Errorf("reschedule failed: %w", err)
	}
	return nil
}

func (r *RetryQueueRepository) MarkDead(ctx context.Context, id string, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE failed_deliveries
		SET status = 'dead', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending_retry'
	`, id, lastError)
	if err != nil {
		return fmt.Errorf("mark dead failed: %w", err)
	}
	return nil
}

func (r *RetryQueueRepository) MarkResolved(ctx context.Context, id, locationID, leadHash, email string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resolve begin failed: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE failed_deliveries SET status = 'resolved', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_retry'
	`, id)
	if err != nil {
		return fmt.Errorf("resolve update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // already resolved by an earlier, interrupted run
	}

	ins, err := tx.ExecContext(ctx, `
		INSERT INTO sent_leads (id, location_id, lead_hash, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (location_id, lead_hash) DO NOTHING
	`, uuid.NewString(), locationID, leadHash, email)
	if err != nil {
		return fmt.Errorf("resolve sent record failed: %w", err)
	}

	// The cumulative count only moves when this resolve actually produced the
	// sent record; a lead already delivered through the sheet scan (cursor
	// reset race) must not count twice.
	if n, _ := ins.RowsAffected(); n > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE locations SET sent_count = sent_count + 1, updated_at = NOW() WHERE id = $1`,
			locationID)
		if err != nil {
			return fmt.Errorf("resolve count failed: %w", err)
		}
	}

	return tx.Commit()
}

func (r *RetryQueueRepository) CountPending(ctx context.Context) (int, error) {
	return r.countByStatus(ctx, entity.FailedStatusPendingRetry)
}

func (r *RetryQueueRepository) CountDead(ctx context.Context) (int, error) {
	return r.countByStatus(ctx, entity.FailedStatusDead)
}

func (r *RetryQueueRepository) countByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_deliveries WHERE status = $1`, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s failed: %w", status, err)
	}
	return n, nil
}

func (r *RetryQueueRepository) ListDead(ctx context.Context, limit int) ([]entity.FailedDelivery, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, location_id, tenant_id, lead_hash, payload::text, reason, status,
		       attempts, next_retry_at, first_failed_at, COALESCE(last_error, ''), updated_at
		FROM failed_deliveries
		WHERE status = 'dead'
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead failed: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// PurgeResolvedBefore drops resolved entries older than the cutoff; the
// maintenance worker calls it so the table stays small.
func (r *RetryQueueRepository) PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM failed_deliveries WHERE status = 'resolved' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge resolved failed: %w", err)
	}
	return res.RowsAffected()
}
