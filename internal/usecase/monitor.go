package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/http/middleware"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/momence"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/sheets"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/queue"
)

const retryBatchSize = 100

// MonitorUseCase drives one cycle: fetch new rows per open-tenant location,
// dedup, deliver, queue failures, then work the retry queue. Single-threaded:
// cycles never overlap, so tracker writes need no locking beyond the store's
// own transactions.
type MonitorUseCase struct {
	Tracker  entity.TrackerRepositoryInterface
	Queue    entity.RetryQueueRepositoryInterface
	Fetcher  SheetFetcher
	Delivery DeliveryClient
	Events   QueueProducerInterface // nil when RabbitMQ is not configured
	Mailer   EmailService           // nil when SMTP is not configured

	DryRun      bool
	Verbose     bool
	MaxAttempts int

	firstRun bool

	mu          sync.Mutex
	lastCycleAt time.Time
	nextWake    time.Duration
	lastStats   CycleStats
}

func NewMonitorUseCase(
	tracker entity.TrackerRepositoryInterface,
	retryQueue entity.RetryQueueRepositoryInterface,
	fetcher SheetFetcher,
	delivery DeliveryClient,
	events QueueProducerInterface,
	mailer EmailService,
) *MonitorUseCase {
	return &MonitorUseCase{
		Tracker:     tracker,
		Queue:       retryQueue,
		Fetcher:     fetcher,
		Delivery:    delivery,
		Events:      events,
		Mailer:      mailer,
		MaxAttempts: DefaultMaxAttempts,
		firstRun:    true,
	}
}

// MonitorStatus is what the dashboard's status endpoint reads.
type MonitorStatus struct {
	LastCycleAt time.Time  `json:"last_cycle_at"`
	NextWakeSec float64    `json:"next_wake_seconds"`
	LastStats   CycleStats `json:"last_cycle"`
}

func (m *MonitorUseCase) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorStatus{
		LastCycleAt: m.lastCycleAt,
		NextWakeSec: m.nextWake.Seconds(),
		LastStats:   m.lastStats,
	}
}

func (m *MonitorUseCase) setStatus(stats CycleStats, nextWake time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCycleAt = stats.StartedAt
	m.nextWake = nextWake
	m.lastStats = stats
}

// RunCycle processes every enabled location once, then the due retry entries.
// Per-location trouble is isolated and logged; a non-nil return means the
// storage subsystem itself failed and the daemon should die so a supervisor
// can restart it.
func (m *MonitorUseCase) RunCycle(ctx context.Context, snap *entity.ConfigSnapshot, now time.Time) (CycleStats, error) {
	stats := CycleStats{StartedAt: now}

	for i := range snap.Locations {
		loc := &snap.Locations[i]
		if !loc.Enabled {
			continue
		}

		tenant := snap.TenantByID(loc.TenantID)
		if tenant == nil || !tenant.Enabled {
			if m.Verbose {
				log.Printf("⚠️ Monitor: location %q skipped, tenant missing or disabled", loc.Name)
			}
			continue
		}

		// Closed tenants spend zero API calls, except on the very first cycle
		// after startup so a restart never leaves a backlog waiting for Monday.
		if !m.firstRun && !IsOpen(tenant, now) {
			stats.SkippedClosed++
			if m.Verbose {
				log.Printf("🕒 Monitor: %q closed, skipping fetch", loc.Name)
			}
			continue
		}

		if err := m.safeProcessLocation(ctx, loc, tenant, now, &stats); err != nil {
			if IsDomainError(err) {
				// Bad spreadsheet/tab id: skip until someone fixes the config.
				log.Printf("❌ Monitor: %v", err)
				continue
			}
			stats.LocationErrors++
			log.Printf("❌ Monitor: location %q failed this cycle: %v", loc.Name, err)
		}
	}

	// Retries run after fresh rows so a just-failed lead never tight-loops
	// inside the cycle that failed it.
	if err := m.ProcessRetries(ctx, snap, now, false, &stats); err != nil {
		return stats, err
	}

	m.firstRun = false
	stats.Duration = time.Since(now)
	middleware.RecordCycle(stats.Duration)

	return stats, nil
}

// safeProcessLocation keeps one misbehaving location (including a panic) from
// taking the rest of the cycle down.
func (m *MonitorUseCase) safeProcessLocation(ctx context.Context, loc *entity.Location, tenant *entity.Tenant, now time.Time, stats *CycleStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.processLocation(ctx, loc, tenant, now, stats)
}

func (m *MonitorUseCase) processLocation(ctx context.Context, loc *entity.Location, tenant *entity.Tenant, now time.Time, stats *CycleStats) error {
	rows, newCursor, err := m.Fetcher.FetchNewRows(ctx, loc.SpreadsheetID, loc.TabName, loc.Cursor)
	if err != nil {
		stats.FetchErrors++
		if sheets.IsConfigError(err) {
			return NewDomainError("sheet_config", "location %q misconfigured: %v", loc.Name, err)
		}
		// Transient: the cursor never moved, next cycle refetches for free.
		log.Printf("⚠️ Sheets: location %q fetch failed, will retry next cycle: %v", loc.Name, err)
		return nil
	}

	if len(rows) == 0 {
		// A shrunk tab with nothing left to process: commit the reset cursor,
		// otherwise the fetcher re-detects the shrink every cycle.
		if newCursor < loc.Cursor && !m.DryRun {
			if err := m.Tracker.AdvanceCursor(ctx, loc.ID, newCursor); err != nil {
				return NewTechnicalError("tracker_write", "cursor reset failed", err)
			}
			loc.Cursor = newCursor
		}
		if m.Verbose {
			log.Printf("📥 Monitor: %q has no new rows (cursor %d)", loc.Name, loc.Cursor)
		}
		return nil
	}

	log.Printf("📥 Monitor: %q has %d new row(s)", loc.Name, len(rows))

	// Rows are processed in sheet order; the cursor commits row by row so a
	// crash mid-batch resumes exactly where it stopped.
	base := newCursor - len(rows)
	for i, row := range rows {
		rowCursor := base + i + 1
		if err := m.processRow(ctx, loc, tenant, row, rowCursor, now, stats); err != nil {
			return err
		}
	}
	return nil
}

func (m *MonitorUseCase) processRow(ctx context.Context, loc *entity.Location, tenant *entity.Tenant, row entity.RawRow, rowCursor int, now time.Time, stats *CycleStats) error {
	stats.Fetched++

	lead := LeadFromRow(row, loc)
	hash := LeadHash(lead)

	sent, err := m.Tracker.IsSent(ctx, loc.ID, hash)
	if err != nil {
		return NewTechnicalError("tracker_read", "sent-record lookup failed", err)
	}
	if sent {
		stats.Duplicates++
		if m.Verbose {
			log.Printf("📥 Monitor: %q row %d already sent (%s), skipping", loc.Name, rowCursor, lead.Email)
		}
		if !m.DryRun {
			if err := m.Tracker.AdvanceCursor(ctx, loc.ID, rowCursor); err != nil {
				return NewTechnicalError("tracker_write", "cursor advance failed", err)
			}
			loc.Cursor = rowCursor
		}
		return nil
	}

	if verrs := ValidateLeadEntry(lead); len(verrs) > 0 {
		// Permanent: audit-log and move on, never queue.
		stats.Rejected++
		log.Printf("❌ Monitor: %q row %d permanently rejected (%v), dropped with audit entry", loc.Name, rowCursor, verrs)
		m.publishEvent(ctx, queue.EventRejected, loc, tenant, lead.Email, momence.ReasonInvalidPayload, 0)
		middleware.RecordDeliveryFailure(momence.ReasonInvalidPayload)
		if !m.DryRun {
			if err := m.Tracker.AdvanceCursor(ctx, loc.ID, rowCursor); err != nil {
				return NewTechnicalError("tracker_write", "cursor advance failed", err)
			}
			loc.Cursor = rowCursor
		}
		return nil
	}

	if m.DryRun {
		stats.WouldSend++
		log.Printf("🚫 Monitor [dry-run]: would send %s (%s %s) from %q", lead.Email, lead.FirstName, lead.LastName, loc.Name)
		return nil
	}

	err = m.Delivery.Deliver(ctx, lead, tenant)
	if err == nil {
		if err := m.Tracker.RecordDelivery(ctx, loc.ID, hash, lead.Email, rowCursor); err != nil {
			// Not recorded as sent: next cycle re-detects and re-delivers.
			// Duplicate risk is accepted over lost-lead risk.
			return NewTechnicalError("tracker_write", "sent-record write failed after delivery", err)
		}
		loc.Cursor = rowCursor
		loc.SentCount++
		stats.Sent++
		middleware.RecordLeadDelivered(loc.Name)
		m.publishEvent(ctx, queue.EventDelivered, loc, tenant, lead.Email, "", 0)
		if m.Verbose {
			log.Printf("✅ Monitor: delivered %s for %q", lead.Email, loc.Name)
		}
		return nil
	}

	reason := momence.FailureReason(err)
	middleware.RecordDeliveryFailure(reason)

	if momence.IsPermanent(err) {
		stats.Rejected++
		log.Printf("❌ Monitor: %q row %d permanently rejected by classification (%s), dropped with audit entry: %v", loc.Name, rowCursor, reason, err)
		m.publishEvent(ctx, queue.EventRejected, loc, tenant, lead.Email, reason, 0)
		if err := m.Tracker.AdvanceCursor(ctx, loc.ID, rowCursor); err != nil {
			return NewTechnicalError("tracker_write", "cursor advance failed", err)
		}
		loc.Cursor = rowCursor
		return nil
	}

	entry := &entity.FailedDelivery{
		ID:            uuid.NewString(),
		LocationID:    loc.ID,
		TenantID:      tenant.ID,
		LeadHash:      hash,
		Lead:          lead,
		Reason:        reason,
		Status:        entity.FailedStatusPendingRetry,
		Attempts:      1,
		NextRetryAt:   NextRetryAt(1, now),
		FirstFailedAt: now,
		LastError:     err.Error(),
	}

	// Cursor moves past the row inside the enqueue transaction: from here on
	// the lead lives in the queue, not the sheet scan.
	if qErr := m.Queue.Enqueue(ctx, entry, rowCursor); qErr != nil {
		log.Printf("❌ Monitor: STORAGE FAILURE enqueueing %s for %q — row stays unprocessed for next cycle: %v", lead.Email, loc.Name, qErr)
		return NewTechnicalError("queue_write", "retry enqueue failed", qErr)
	}
	loc.Cursor = rowCursor
	stats.Queued++
	log.Printf("⚠️ Monitor: delivery failed for %s (%s), queued for retry at %s", lead.Email, reason, entry.NextRetryAt.Format(time.RFC3339))
	m.publishEvent(ctx, queue.EventQueuedRetry, loc, tenant, lead.Email, reason, 1)

	return nil
}

// ProcessRetries re-attempts due queue entries in bounded batches. force
// ignores the backoff schedule (--retry-failed).
func (m *MonitorUseCase) ProcessRetries(ctx context.Context, snap *entity.ConfigSnapshot, now time.Time, force bool, stats *CycleStats) error {
	afterID := ""
	for {
		var (
			entries []entity.FailedDelivery
			err     error
		)
		if force {
			entries, err = m.Queue.ForceDue(ctx, retryBatchSize, afterID)
		} else {
			entries, err = m.Queue.Due(ctx, now, retryBatchSize, afterID)
		}
		if err != nil {
			return NewTechnicalError("queue_read", "due-entry scan failed", err)
		}
		if len(entries) == 0 {
			return nil
		}

		for i := range entries {
			m.retryEntry(ctx, snap, &entries[i], now, stats)
		}
		afterID = entries[len(entries)-1].ID
	}
}

func (m *MonitorUseCase) retryEntry(ctx context.Context, snap *entity.ConfigSnapshot, e *entity.FailedDelivery, now time.Time, stats *CycleStats) {
	tenant := snap.TenantByID(e.TenantID)
	loc := snap.LocationByID(e.LocationID)
	locName := e.LocationID
	if loc != nil {
		locName = loc.Name
	}

	if tenant == nil || !tenant.Enabled {
		log.Printf("⚠️ Retry: entry %s skipped, tenant missing or disabled", e.ID)
		return // stays pending; picked up again if the tenant comes back
	}

	// A cursor reset can re-feed an enqueued row through the sheet scan. If it
	// got delivered that way, resolve without a second call.
	if sent, sErr := m.Tracker.IsSent(ctx, e.LocationID, e.LeadHash); sErr == nil && sent {
		if mErr := m.Queue.MarkResolved(ctx, e.ID, e.LocationID, e.LeadHash, e.Lead.Email); mErr != nil {
			log.Printf("❌ Retry: STORAGE FAILURE resolving already-sent entry %s: %v", e.ID, mErr)
			return
		}
		stats.Resolved++
		log.Printf("✅ Retry: %s already delivered, entry %s resolved without resend", e.Lead.Email, e.ID)
		return
	}

	if m.DryRun {
		stats.WouldSend++
		log.Printf("🚫 Retry [dry-run]: would retry %s (attempt %d) for %q", e.Lead.Email, e.Attempts+1, locName)
		return
	}

	err := m.Delivery.Deliver(ctx, e.Lead, tenant)
	if err == nil {
		if mErr := m.Queue.MarkResolved(ctx, e.ID, e.LocationID, e.LeadHash, e.Lead.Email); mErr != nil {
			log.Printf("❌ Retry: STORAGE FAILURE resolving entry %s, will re-attempt next cycle: %v", e.ID, mErr)
			return
		}
		stats.Resolved++
		if loc != nil {
			loc.SentCount++
		}
		middleware.RecordLeadDelivered(locName)
		m.publishEvent(ctx, queue.EventDelivered, loc, tenant, e.Lead.Email, "", e.Attempts)
		log.Printf("✅ Retry: %s delivered on attempt %d for %q", e.Lead.Email, e.Attempts+1, locName)
		return
	}

	reason := momence.FailureReason(err)
	middleware.RecordDeliveryFailure(reason)
	attempts := e.Attempts + 1

	if momence.IsPermanent(err) || attempts >= m.MaxAttempts {
		if mErr := m.Queue.MarkDead(ctx, e.ID, err.Error()); mErr != nil {
			log.Printf("❌ Retry: STORAGE FAILURE dead-lettering entry %s: %v", e.ID, mErr)
			return
		}
		stats.Dead++
		e.Attempts = attempts
		middleware.RecordDeadLetter()
		log.Printf("❌ Retry: %s exhausted after %d attempts (%s), dead-lettered for manual handling", e.Lead.Email, attempts, reason)
		m.publishEvent(ctx, queue.EventDeadLettered, loc, tenant, e.Lead.Email, reason, attempts)
		m.sendDeadLetterAlert(loc, *e)
		return
	}

	next := NextRetryAt(attempts, now)
	if mErr := m.Queue.Reschedule(ctx, e.ID, attempts, next, err.Error()); mErr != nil {
		log.Printf("❌ Retry: STORAGE FAILURE rescheduling entry %s: %v", e.ID, mErr)
		return
	}
	stats.Rescheduled++
	if m.Verbose {
		log.Printf("⚠️ Retry: %s failed again (%s), attempt %d, next try %s", e.Lead.Email, reason, attempts, next.Format(time.RFC3339))
	}
}

func (m *MonitorUseCase) publishEvent(ctx context.Context, eventType string, loc *entity.Location, tenant *entity.Tenant, email, reason string, attempts int) {
	if m.Events == nil {
		return
	}

	payload := queue.LeadEventPayload{
		Type:       eventType,
		Email:      email,
		Reason:     reason,
		Attempts:   attempts,
		OccurredAt: time.Now(),
	}
	if tenant != nil {
		payload.TenantID = tenant.ID
	}
	if loc != nil {
		payload.LocationID = loc.ID
		payload.Location = loc.Name
	}

	if err := m.Events.PublishLeadEvent(ctx, payload); err != nil {
		// Events feed the dashboard; losing one never blocks the pipeline.
		log.Printf("⚠️ Events: publish %s failed: %v", eventType, err)
	}
}

func (m *MonitorUseCase) sendDeadLetterAlert(loc *entity.Location, entry entity.FailedDelivery) {
	if m.Mailer == nil || loc == nil || loc.NotifyEmail == "" {
		return
	}
	if err := m.Mailer.SendDeadLetterAlert(loc.NotifyEmail, loc.Name, entry); err != nil {
		log.Printf("⚠️ Mail: dead-letter alert to %s failed: %v", loc.NotifyEmail, err)
	}
}

// LogSummary prints the per-cycle rollup the dashboard log collector scrapes.
func (m *MonitorUseCase) LogSummary(snap *entity.ConfigSnapshot, stats CycleStats, nextWake time.Duration) {
	m.setStatus(stats, nextWake)

	log.Printf("✅ Cycle done in %s: fetched=%d sent=%d dup=%d queued=%d rejected=%d resolved=%d rescheduled=%d dead=%d skipped_closed=%d fetch_errors=%d",
		stats.Duration.Round(time.Millisecond), stats.Fetched, stats.Sent, stats.Duplicates,
		stats.Queued, stats.Rejected, stats.Resolved, stats.Rescheduled, stats.Dead,
		stats.SkippedClosed, stats.FetchErrors)
	for i := range snap.Locations {
		loc := &snap.Locations[i]
		if loc.Enabled {
			log.Printf("   📍 %s: %d delivered total (cursor %d)", loc.Name, loc.SentCount, loc.Cursor)
		}
	}
	if nextWake > 0 {
		log.Printf("🕒 Next wake in %s", nextWake)
	}
}
