package worker

import (
	"context"
	"log"
	"time"

	"github.com/xavierca1/lead-sheets-monitor/internal/infra/database"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/http/middleware"
)

// QueueMaintenanceWorker keeps the failed_deliveries table small: resolved
// entries older than the retention window get purged, and the pending-retries
// gauge is refreshed for the metrics endpoint. Runs only in daemon mode.
type QueueMaintenanceWorker struct {
	queue        *database.RetryQueueRepository
	retention    time.Duration
	tickInterval time.Duration
}

func NewQueueMaintenanceWorker(queue *database.RetryQueueRepository) *QueueMaintenanceWorker {
	return &QueueMaintenanceWorker{
		queue:        queue,
		retention:    7 * 24 * time.Hour,
		tickInterval: 1 * time.Hour,
	}
}

func (w *QueueMaintenanceWorker) Start(ctx context.Context) {
	log.Printf("🕒 Queue maintenance worker started (retention %s)", w.retention)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Queue maintenance worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *QueueMaintenanceWorker) sweep(ctx context.Context) {
	purged, err := w.queue.PurgeResolvedBefore(ctx, time.Now().Add(-w.retention))
	if err != nil {
		log.Printf("❌ Queue maintenance: purge failed: %v", err)
	} else if purged > 0 {
		log.Printf("✅ Queue maintenance: purged %d resolved entr(ies)", purged)
	}

	pending, err := w.queue.CountPending(ctx)
	if err != nil {
		log.Printf("⚠️ Queue maintenance: pending count failed: %v", err)
		return
	}
	middleware.SetPendingRetries(pending)
}
