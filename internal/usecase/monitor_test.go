package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/momence"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/sheets"
)

// MockTrackerRepository
type MockTrackerRepository struct {
	mock.Mock
}

func (m *MockTrackerRepository) IsSent(ctx context.Context, locationID, leadHash string) (bool, error) {
	args := m.Called(ctx, locationID, leadHash)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrackerRepository) RecordDelivery(ctx context.Context, locationID, leadHash, email string, newCursor int) error {
	args := m.Called(ctx, locationID, leadHash, email, newCursor)
	return args.Error(0)
}

func (m *MockTrackerRepository) AdvanceCursor(ctx context.Context, locationID string, newCursor int) error {
	args := m.Called(ctx, locationID, newCursor)
	return args.Error(0)
}

func (m *MockTrackerRepository) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRetryQueueRepository
type MockRetryQueueRepository struct {
	mock.Mock
}

func (m *MockRetryQueueRepository) Enqueue(ctx context.Context, entry *entity.FailedDelivery, newCursor int) error {
	args := m.Called(ctx, entry, newCursor)
	return args.Error(0)
}

func (m *MockRetryQueueRepository) Due(ctx context.Context, now time.Time, limit int, afterID string) ([]entity.FailedDelivery, error) {
	args := m.Called(ctx, now, limit, afterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.FailedDelivery), args.Error(1)
}

func (m *MockRetryQueueRepository) ForceDue(ctx context.Context, limit int, afterID string) ([]entity.FailedDelivery, error) {
	args := m.Called(ctx, limit, afterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.FailedDelivery), args.Error(1)
}

func (m *MockRetryQueueRepository) Reschedule(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	args := m.Called(ctx, id, attempts, nextRetryAt, lastError)
	return args.Error(0)
}

func (m *MockRetryQueueRepository) MarkDead(ctx context.Context, id string, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockRetryQueueRepository) MarkResolved(ctx context.Context, id, locationID, leadHash, email string) error {
	args := m.Called(ctx, id, locationID, leadHash, email)
	return args.Error(0)
}

func (m *MockRetryQueueRepository) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRetryQueueRepository) CountDead(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRetryQueueRepository) ListDead(ctx context.Context, limit int) ([]entity.FailedDelivery, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.FailedDelivery), args.Error(1)
}

// MockSheetFetcher
type MockSheetFetcher struct {
	mock.Mock
}

func (m *MockSheetFetcher) FetchNewRows(ctx context.Context, spreadsheetID, tabName string, cursor int) ([]entity.RawRow, int, error) {
	args := m.Called(ctx, spreadsheetID, tabName, cursor)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]entity.RawRow), args.Int(1), args.Error(2)
}

// MockDeliveryClient
type MockDeliveryClient struct {
	mock.Mock
}

func (m *MockDeliveryClient) Deliver(ctx context.Context, lead entity.LeadEntry, tenant *entity.Tenant) error {
	args := m.Called(ctx, lead, tenant)
	return args.Error(0)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendDeadLetterAlert(to, locationName string, entry entity.FailedDelivery) error {
	args := m.Called(to, locationName, entry)
	return args.Error(0)
}

func openSnapshot() *entity.ConfigSnapshot {
	return &entity.ConfigSnapshot{
		Tenants: []entity.Tenant{{
			ID: "t1", Name: "Studio One", HostID: "12345", APIToken: "tok",
			Enabled: true, BusinessIntervalMin: 5, OffHoursIntervalMin: 30,
		}},
		Locations: []entity.Location{{
			ID: "loc1", Name: "Eden Prairie", SpreadsheetID: "sheet-1", TabName: "Leads",
			TenantID: "t1", SourceID: "src-1", Enabled: true, NotifyEmail: "owner@example.com",
		}},
	}
}

func newTestMonitor(tracker *MockTrackerRepository, queueRepo *MockRetryQueueRepository, fetcher *MockSheetFetcher, delivery *MockDeliveryClient) *MonitorUseCase {
	return NewMonitorUseCase(tracker, queueRepo, fetcher, delivery, nil, nil)
}

func leadWithEmail(email string) interface{} {
	return mock.MatchedBy(func(lead entity.LeadEntry) bool {
		return lead.Email == email
	})
}

func TestCycleDeliversAndQueuesPerRow(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	rows := []entity.RawRow{
		{"Email": "a@x.com", "First Name": "A", "Last Name": "X"},
		{"Email": "b@x.com", "First Name": "B", "Last Name": "Y"},
	}
	fetcher.On("FetchNewRows", mock.Anything, "sheet-1", "Leads", 0).Return(rows, 2, nil)

	hashA := LeadHash(LeadFromRow(rows[0], &snap.Locations[0]))
	hashB := LeadHash(LeadFromRow(rows[1], &snap.Locations[0]))

	tracker.On("IsSent", mock.Anything, "loc1", hashA).Return(false, nil)
	tracker.On("IsSent", mock.Anything, "loc1", hashB).Return(false, nil)

	delivery.On("Deliver", mock.Anything, leadWithEmail("a@x.com"), mock.Anything).Return(nil)
	delivery.On("Deliver", mock.Anything, leadWithEmail("b@x.com"), mock.Anything).
		Return(&momence.DeliveryError{Reason: momence.ReasonRateLimited, Retryable: true, StatusCode: 429})

	tracker.On("RecordDelivery", mock.Anything, "loc1", hashA, "a@x.com", 1).Return(nil)

	queueRepo.On("Enqueue", mock.Anything, mock.MatchedBy(func(e *entity.FailedDelivery) bool {
		return e.Lead.Email == "b@x.com" &&
			e.Reason == momence.ReasonRateLimited &&
			e.Attempts == 1 &&
			e.NextRetryAt.Equal(now.Add(1*time.Hour))
	}), 2).Return(nil)

	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), snap, now)

	assert.NoError(t, err)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 2, snap.Locations[0].Cursor)
	assert.Equal(t, 1, snap.Locations[0].SentCount)
	tracker.AssertExpectations(t)
	queueRepo.AssertExpectations(t)
}

func TestCycleRerunWithNoNewRowsIsIdle(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()
	snap.Locations[0].Cursor = 2

	fetcher.On("FetchNewRows", mock.Anything, "sheet-1", "Leads", 2).Return([]entity.RawRow{}, 2, nil)
	// The b@x.com entry is still queued but not yet due, so the repository
	// filter returns nothing.
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), snap, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 0, stats.Fetched)
	delivery.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
	tracker.AssertNotCalled(t, "RecordDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDryRunMakesNoWritesAndNoCalls(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)
	monitor.DryRun = true

	rows := []entity.RawRow{
		{"Email": "a@x.com", "First Name": "A"},
		{"Email": "b@x.com", "First Name": "B"},
		{"Email": "c@x.com", "First Name": "C"},
	}
	fetcher.On("FetchNewRows", mock.Anything, mock.Anything, mock.Anything, 0).Return(rows, 3, nil)
	tracker.On("IsSent", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), openSnapshot(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 3, stats.WouldSend)
	assert.Equal(t, 0, stats.Sent)
	delivery.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
	tracker.AssertNotCalled(t, "RecordDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tracker.AssertNotCalled(t, "AdvanceCursor", mock.Anything, mock.Anything, mock.Anything)
}

func TestAlreadySentRowSkipsDelivery(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	rows := []entity.RawRow{{"Email": "a@x.com", "First Name": "A"}}
	fetcher.On("FetchNewRows", mock.Anything, mock.Anything, mock.Anything, 0).Return(rows, 1, nil)
	tracker.On("IsSent", mock.Anything, "loc1", mock.Anything).Return(true, nil)
	tracker.On("AdvanceCursor", mock.Anything, "loc1", 1).Return(nil)
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), openSnapshot(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Duplicates)
	delivery.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
	tracker.AssertExpectations(t)
}

func TestInvalidLeadIsRejectedNotQueued(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	rows := []entity.RawRow{{"First Name": "NoEmail", "Last Name": "Person"}}
	fetcher.On("FetchNewRows", mock.Anything, mock.Anything, mock.Anything, 0).Return(rows, 1, nil)
	tracker.On("IsSent", mock.Anything, "loc1", mock.Anything).Return(false, nil)
	tracker.On("AdvanceCursor", mock.Anything, "loc1", 1).Return(nil)
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), openSnapshot(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)
	delivery.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
	queueRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestClosedTenantSkippedAfterFirstRun(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()
	// Only open on Sundays; test runs on a Monday.
	snap.Tenants[0].Hours = entity.BusinessHours{"sunday": []int{8, 16}}
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	// First run since startup fetches even though the tenant is closed.
	fetcher.On("FetchNewRows", mock.Anything, "sheet-1", "Leads", 0).Return([]entity.RawRow{}, 0, nil).Once()
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	_, err := monitor.RunCycle(context.Background(), snap, now)
	assert.NoError(t, err)

	stats, err := monitor.RunCycle(context.Background(), snap, now)
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedClosed)
	fetcher.AssertNumberOfCalls(t, "FetchNewRows", 1)
}

func TestRetryResolvesOnSuccess(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()
	now := time.Now()

	entry := entity.FailedDelivery{
		ID: "fd1", LocationID: "loc1", TenantID: "t1", LeadHash: "hash-b",
		Lead:     entity.LeadEntry{Email: "b@x.com", FirstName: "B", LocationID: "loc1", SourceID: "src-1"},
		Reason:   momence.ReasonRateLimited,
		Status:   entity.FailedStatusPendingRetry,
		Attempts: 1,
	}

	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return([]entity.FailedDelivery{entry}, nil).Once()
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "fd1").Return(nil, nil).Once()
	tracker.On("IsSent", mock.Anything, "loc1", "hash-b").Return(false, nil)
	delivery.On("Deliver", mock.Anything, leadWithEmail("b@x.com"), mock.Anything).Return(nil)
	queueRepo.On("MarkResolved", mock.Anything, "fd1", "loc1", "hash-b", "b@x.com").Return(nil)

	stats := CycleStats{}
	err := monitor.ProcessRetries(context.Background(), snap, now, false, &stats)

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	queueRepo.AssertExpectations(t)
}

func TestRetryExhaustionDeadLettersAndAlerts(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	mailer := new(MockEmailService)
	monitor := NewMonitorUseCase(tracker, queueRepo, fetcher, delivery, nil, mailer)

	snap := openSnapshot()
	now := time.Now()

	entry := entity.FailedDelivery{
		ID: "fd1", LocationID: "loc1", TenantID: "t1", LeadHash: "hash-b",
		Lead:     entity.LeadEntry{Email: "b@x.com", FirstName: "B"},
		Reason:   momence.ReasonRateLimited,
		Status:   entity.FailedStatusPendingRetry,
		Attempts: 4,
	}

	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return([]entity.FailedDelivery{entry}, nil).Once()
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "fd1").Return(nil, nil).Once()
	tracker.On("IsSent", mock.Anything, "loc1", "hash-b").Return(false, nil)
	delivery.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&momence.DeliveryError{Reason: momence.ReasonEdgeDefense, Retryable: true, StatusCode: 403})
	queueRepo.On("MarkDead", mock.Anything, "fd1", mock.Anything).Return(nil)
	mailer.On("SendDeadLetterAlert", "owner@example.com", "Eden Prairie", mock.Anything).Return(nil)

	stats := CycleStats{}
	err := monitor.ProcessRetries(context.Background(), snap, now, false, &stats)

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Dead)
	assert.Equal(t, 0, stats.Rescheduled)
	queueRepo.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mailer.AssertExpectations(t)
}

func TestRetryReschedulesBeforeExhaustion(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()
	now := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	entry := entity.FailedDelivery{
		ID: "fd1", LocationID: "loc1", TenantID: "t1", LeadHash: "hash-b",
		Lead:     entity.LeadEntry{Email: "b@x.com"},
		Status:   entity.FailedStatusPendingRetry,
		Attempts: 1,
	}

	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return([]entity.FailedDelivery{entry}, nil).Once()
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "fd1").Return(nil, nil).Once()
	tracker.On("IsSent", mock.Anything, "loc1", "hash-b").Return(false, nil)
	delivery.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&momence.DeliveryError{Reason: momence.ReasonNetwork, Retryable: true})
	// Attempt 2 reschedules per the backoff table: +4h.
	queueRepo.On("Reschedule", mock.Anything, "fd1", 2, now.Add(4*time.Hour), mock.Anything).Return(nil)

	stats := CycleStats{}
	err := monitor.ProcessRetries(context.Background(), snap, now, false, &stats)

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Rescheduled)
	queueRepo.AssertExpectations(t)
}

func TestRetryAlreadySentResolvesWithoutResend(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()

	entry := entity.FailedDelivery{
		ID: "fd1", LocationID: "loc1", TenantID: "t1", LeadHash: "hash-b",
		Lead:     entity.LeadEntry{Email: "b@x.com"},
		Status:   entity.FailedStatusPendingRetry,
		Attempts: 1,
	}

	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return([]entity.FailedDelivery{entry}, nil).Once()
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "fd1").Return(nil, nil).Once()
	tracker.On("IsSent", mock.Anything, "loc1", "hash-b").Return(true, nil)
	queueRepo.On("MarkResolved", mock.Anything, "fd1", "loc1", "hash-b", "b@x.com").Return(nil)

	stats := CycleStats{}
	err := monitor.ProcessRetries(context.Background(), snap, time.Now(), false, &stats)

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
	delivery.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnqueueStorageFailureIsolatedToLocation(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	rows := []entity.RawRow{{"Email": "a@x.com", "First Name": "A"}}
	fetcher.On("FetchNewRows", mock.Anything, mock.Anything, mock.Anything, 0).Return(rows, 1, nil)
	tracker.On("IsSent", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	delivery.On("Deliver", mock.Anything, mock.Anything, mock.Anything).
		Return(&momence.DeliveryError{Reason: momence.ReasonAPIError, Retryable: true, StatusCode: 502})
	queueRepo.On("Enqueue", mock.Anything, mock.Anything, 1).Return(errors.New("disk full"))
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), openSnapshot(), time.Now())

	// The cycle survives; the row stays untracked and is re-detected next cycle.
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.LocationErrors)
}

func TestMisconfiguredLocationSkippedWithoutLocationError(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	fetcher.On("FetchNewRows", mock.Anything, mock.Anything, mock.Anything, 0).
		Return(nil, 0, &sheets.FetchError{Transient: false, StatusCode: 404, Message: "entity not found"})
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), openSnapshot(), time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 1, stats.FetchErrors)
	assert.Equal(t, 0, stats.LocationErrors)
	delivery.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
	tracker.AssertNotCalled(t, "AdvanceCursor", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmptyShrunkTabPersistsCursorReset(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	snap := openSnapshot()
	snap.Locations[0].Cursor = 5

	fetcher.On("FetchNewRows", mock.Anything, "sheet-1", "Leads", 5).Return([]entity.RawRow{}, 0, nil)
	tracker.On("AdvanceCursor", mock.Anything, "loc1", 0).Return(nil)
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	stats, err := monitor.RunCycle(context.Background(), snap, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 0, stats.Fetched)
	assert.Equal(t, 0, snap.Locations[0].Cursor)
	tracker.AssertExpectations(t)
}

func TestEmptyShrunkTabDryRunLeavesCursor(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)
	monitor.DryRun = true

	snap := openSnapshot()
	snap.Locations[0].Cursor = 5

	fetcher.On("FetchNewRows", mock.Anything, "sheet-1", "Leads", 5).Return([]entity.RawRow{}, 0, nil)
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, nil)

	_, err := monitor.RunCycle(context.Background(), snap, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, 5, snap.Locations[0].Cursor)
	tracker.AssertNotCalled(t, "AdvanceCursor", mock.Anything, mock.Anything, mock.Anything)
}

func TestDueScanFailureIsFatal(t *testing.T) {
	tracker := new(MockTrackerRepository)
	queueRepo := new(MockRetryQueueRepository)
	fetcher := new(MockSheetFetcher)
	delivery := new(MockDeliveryClient)
	monitor := newTestMonitor(tracker, queueRepo, fetcher, delivery)

	fetcher.On("FetchNewRows", mock.Anything, mock.Anything, mock.Anything, 0).Return([]entity.RawRow{}, 0, nil)
	queueRepo.On("Due", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, errors.New("connection lost"))

	_, err := monitor.RunCycle(context.Background(), openSnapshot(), time.Now())

	assert.Error(t, err)
	assert.True(t, IsTechnicalError(err))
}
