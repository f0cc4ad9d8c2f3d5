package usecase

import (
	"context"

	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/queue"
)

// SheetFetcher reads newly appended rows for one location. newCursor is the
// total data-row count after the fetch; rows covers (newCursor-len(rows), newCursor].
type SheetFetcher interface {
	FetchNewRows(ctx context.Context, spreadsheetID, tabName string, cursor int) (rows []entity.RawRow, newCursor int, err error)
}

// DeliveryClient submits one lead to the tenant's CRM collector. A nil error is
// a confirmed delivery; anything else is classified by the client (see
// integration/momence).
type DeliveryClient interface {
	Deliver(ctx context.Context, lead entity.LeadEntry, tenant *entity.Tenant) error
}

type QueueProducerInterface interface {
	PublishLeadEvent(ctx context.Context, payload queue.LeadEventPayload) error
}

type EmailService interface {
	SendDeadLetterAlert(to, locationName string, entry entity.FailedDelivery) error
}
