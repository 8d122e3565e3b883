package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"toolcrib-api/internal/middleware"
	"toolcrib-api/internal/model"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/uid"
)

const (
	exchangeType = "topic"
	eventVersion = "1.0.0"

	// Routing keys
	EventTypeToolEventRecorded   = "tool.event.recorded"
	EventTypeInventoryReconciled = "inventory.reconciled"

	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Second
	confirmTimeout = 5 * time.Second
)

// Envelope is the message body of every notification.
type Envelope struct {
	EventID       string      `json:"event_id"`
	EventType     string      `json:"event_type"`
	EventVersion  string      `json:"event_version"`
	Timestamp     string      `json:"timestamp"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Payload       interface{} `json:"payload"`
}

// ReconciledPayload describes a successful ledger change.
type ReconciledPayload struct {
	EventID   int64                   `json:"event_id"`
	Event     model.EventKind         `json:"event"`
	Action    string                  `json:"action"`
	Inventory model.InventorySnapshot `json:"inventory"`
}

// Publisher sends ledger notifications to a RabbitMQ topic exchange with
// publisher confirms.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// NewPublisher dials RabbitMQ and declares a durable topic exchange.
func NewPublisher(url, exchange string, log *zap.Logger) (*Publisher, error) {
	log = logger.Named(log, "publisher")

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Info("connected to RabbitMQ", zap.String("exchange", exchange))
	return &Publisher{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

// PublishEventRecorded announces a newly stored tool event.
func (p *Publisher) PublishEventRecorded(ctx context.Context, e *model.ToolEvent) error {
	return p.publishWithRetry(ctx, newEnvelope(ctx, EventTypeToolEventRecorded, e))
}

// PublishInventoryReconciled announces a counter change caused by an event.
func (p *Publisher) PublishInventoryReconciled(ctx context.Context, e *model.ToolEvent, action string, inv model.InventorySnapshot) error {
	return p.publishWithRetry(ctx, newEnvelope(ctx, EventTypeInventoryReconciled, ReconciledPayload{
		EventID:   e.ID,
		Event:     e.Event,
		Action:    action,
		Inventory: inv,
	}))
}

func newEnvelope(ctx context.Context, eventType string, payload interface{}) Envelope {
	return Envelope{
		EventID:       uid.New(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CorrelationID: middleware.GetRequestID(ctx),
		Payload:       payload,
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}

		lastErr = p.publishOnce(ctx, env, body)
		if lastErr == nil {
			p.log.Debug("event published",
				zap.String("event_id", env.EventID),
				zap.String("event_type", env.EventType))
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}

		p.log.Warn("event publish failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.String("event_type", env.EventType),
			zap.Error(lastErr))
	}

	p.log.Error("failed to publish event after retries",
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr))
	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

func (p *Publisher) publishOnce(ctx context.Context, env Envelope, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,
		env.EventType,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    env.EventID,
			Body:         body,
			Headers: amqp.Table{
				"event_type":    env.EventType,
				"event_version": env.EventVersion,
			},
		},
	)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	acked, err := confirm.WaitContext(waitCtx)
	if err != nil {
		return fmt.Errorf("confirmation not received: %w", err)
	}
	if !acked {
		return errors.New("event not acknowledged")
	}
	return nil
}

// IsHealthy reports whether the broker connection is open.
func (p *Publisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn("failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every notification. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishEventRecorded(context.Context, *model.ToolEvent) error { return nil }

func (Nop) PublishInventoryReconciled(context.Context, *model.ToolEvent, string, model.InventorySnapshot) error {
	return nil
}

func (Nop) IsHealthy() bool { return true }

func (Nop) Close() error { return nil }
