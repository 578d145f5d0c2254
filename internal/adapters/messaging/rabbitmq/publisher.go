package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsmsg "github.com/corebanking/ledgersvc/internal/core/ports/messaging"
)

// Header names on every published message.
const (
	HeaderType          = "type"
	HeaderCorrelationID = "x-correlation-id"
	HeaderCausationID   = "x-causation-id"
	HeaderTimestamp     = "timestamp"
)

// Publisher publishes outbox messages to a topic exchange on a
// confirm-mode channel. The connection is established lazily and
// re-established whenever it is found closed at the start of a cycle.
type Publisher struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a broker publisher. No connection is made until
// the first EnsureOpen call.
func NewPublisher(url, exchange string, logger *slog.Logger) *Publisher {
	return &Publisher{
		url:      url,
		exchange: exchange,
		logger:   logger.With(slog.String("component", "broker_publisher")),
	}
}

var _ portsmsg.Publisher = (*Publisher)(nil)

// EnsureOpen (re)establishes the connection and confirm-mode channel if
// either is missing or closed.
func (p *Publisher) EnsureOpen(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}

	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to put channel into confirm mode: %w", err)
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("Broker channel established", slog.String("exchange", p.exchange))
	return nil
}

// amqpConfirmation adapts a deferred confirmation to the messaging port.
type amqpConfirmation struct {
	dc *amqp.DeferredConfirmation
}

func (c amqpConfirmation) Wait(ctx context.Context) (bool, error) {
	return c.dc.WaitContext(ctx)
}

// Publish sends one message under its event type's routing key. The
// returned confirmation is settled by the broker asynchronously.
func (p *Publisher) Publish(ctx context.Context, message domain.OutboxMessage) (portsmsg.Confirmation, error) {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return nil, fmt.Errorf("broker channel not open")
	}

	now := time.Now()
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, message.EventType.RoutingKey(), false, false, amqp.Publishing{
		Headers: amqp.Table{
			HeaderType:          string(message.EventType),
			HeaderCorrelationID: message.CorrelationID.String(),
			HeaderCausationID:   message.CausationID.String(),
			HeaderTimestamp:     now.UnixMilli(),
		},
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.MessageID.String(),
		Timestamp:    now,
		Type:         string(message.EventType),
		Body:         message.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish %s message %s: %w", message.EventType, message.MessageID, err)
	}
	return amqpConfirmation{dc: dc}, nil
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

// declareExchange idempotently declares the durable topic exchange.
func declareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}
