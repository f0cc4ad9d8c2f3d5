package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Lead event types consumed by the dashboard / digest collaborator.
const (
	EventDelivered    = "delivered"
	EventQueuedRetry  = "queued_retry"
	EventDeadLettered = "dead_lettered"
	EventRejected     = "rejected" // permanently invalid payload, audit trail
)

type LeadEventPayload struct {
	Type       string    `json:"type"`
	TenantID   string    `json:"tenant_id"`
	LocationID string    `json:"location_id"`
	Location   string    `json:"location"`
	Email      string    `json:"email"`
	Reason     string    `json:"reason,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type RabbitMQProducer struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewProducer(conn *amqp.Connection, ch *amqp.Channel) *RabbitMQProducer {
	return &RabbitMQProducer{
		Conn: conn,
		Ch:   ch,
	}
}

func (p *RabbitMQProducer) PublishLeadEvent(ctx context.Context, payload LeadEventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lead event marshal failed: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("lead event publish failed: %w", err)
	}

	return nil
}
