package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	portsmsg "github.com/corebanking/ledgersvc/internal/core/ports/messaging"
)

const (
	reconnectDelay = 3 * time.Second
	// failureDelay throttles redelivery loops after a nack.
	failureDelay = 500 * time.Millisecond
)

// Consumer binds one durable queue to the topic exchange and feeds
// deliveries to a message processor one at a time. It reconnects with a
// fixed delay until its context is cancelled.
type Consumer struct {
	url        string
	exchange   string
	queue      string
	bindingKey string
	processor  portsmsg.MessageProcessor
	logger     *slog.Logger
}

// NewConsumer creates a consumer for one queue binding. Run must be
// called to start consuming.
func NewConsumer(url, exchange, queue, bindingKey string, processor portsmsg.MessageProcessor, logger *slog.Logger) *Consumer {
	return &Consumer{
		url:        url,
		exchange:   exchange,
		queue:      queue,
		bindingKey: bindingKey,
		processor:  processor,
		logger: logger.With(
			slog.String("component", "broker_consumer"),
			slog.String("queue", queue),
		),
	}
}

// Run consumes until ctx is cancelled, reconnecting on broker failures.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if err := c.consumeOnce(ctx); err != nil {
			c.logger.Error("Consumer stopped, reconnecting", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, c.bindingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", c.queue, c.bindingKey, err)
	}
	// One unacked message at a time keeps processing strictly serial.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.logger.Info("Consuming", slog.String("binding_key", c.bindingKey))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	decision := c.processor.Process(ctx, toDelivery(d))
	switch decision {
	case portsmsg.Ack:
		if err := d.Ack(false); err != nil {
			c.logger.Error("Failed to ack delivery", slog.String("error", err.Error()))
		}
	case portsmsg.NackRequeue:
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("Failed to nack delivery", slog.String("error", err.Error()))
		}
	case portsmsg.NackDrop:
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("Failed to nack delivery", slog.String("error", err.Error()))
		}
	}
	if decision != portsmsg.Ack {
		select {
		case <-ctx.Done():
		case <-time.After(failureDelay):
		}
	}
}

// toDelivery maps the transport delivery onto the port shape. Header
// values are looked up first, the bare AMQP properties second.
func toDelivery(d amqp.Delivery) portsmsg.Delivery {
	out := portsmsg.Delivery{
		MessageID:   d.MessageId,
		Type:        d.Type,
		Redelivered: d.Redelivered,
		Body:        d.Body,
	}
	if v, ok := d.Headers[HeaderType].(string); ok && v != "" {
		out.Type = v
	}
	if v, ok := d.Headers[HeaderCorrelationID].(string); ok {
		out.CorrelationID = v
	}
	if v, ok := d.Headers[HeaderCausationID].(string); ok {
		out.CausationID = v
	}
	return out
}
