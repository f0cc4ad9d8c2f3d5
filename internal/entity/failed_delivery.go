package entity

import (
	"context"
	"time"
)

const (
	FailedStatusPendingRetry = "pending_retry"
	FailedStatusResolved     = "resolved"
	FailedStatusDead         = "dead"
)

type FailedDelivery struct {
	ID            string    `json:"id"`
	LocationID    string    `json:"location_id"`
	TenantID      string    `json:"tenant_id"`
	LeadHash      string    `json:"lead_hash"`
	Lead          LeadEntry `json:"lead"`
	Reason        string    `json:"reason"`
	Status        string    `json:"status"` // pending_retry, resolved, dead
	Attempts      int       `json:"attempts"`
	NextRetryAt   time.Time `json:"next_retry_at"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RetryQueueRepositoryInterface interface {
	// Enqueue inserts the entry and advances the location cursor past the failed
	// row in the same transaction, so the row is tracked by the queue alone from
	// then on.
	Enqueue(ctx context.Context, entry *FailedDelivery, newCursor int) error

	// Due returns pending entries whose next_retry_at has elapsed, in batches.
	// afterID is the keyset cursor ("" for the first batch).
	Due(ctx context.Context, now time.Time, limit int, afterID string) ([]FailedDelivery, error)

	// ForceDue ignores next_retry_at and returns every pending entry, batched.
	ForceDue(ctx context.Context, limit int, afterID string) ([]FailedDelivery, error)

	Reschedule(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id string, lastError string) error

	// MarkResolved flips the entry, writes its SentRecord and bumps the
	// location's cumulative count in one transaction. The cursor already moved
	// past the row when it was enqueued.
	MarkResolved(ctx context.Context, id, locationID, leadHash, email string) error

	CountPending(ctx context.Context) (int, error)
	CountDead(ctx context.Context) (int, error)
	ListDead(ctx context.Context, limit int) ([]FailedDelivery, error)
}
