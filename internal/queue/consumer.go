// Package queue runs the notification dispatcher side of booking events:
// it consumes the booking events queue and hands each event to a handler.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bus-booking/pkg/notify"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	prefetch       = 50
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Handler processes one decoded event. A returned error rejects the message
// without requeueing it.
type Handler func(ctx context.Context, event notify.BookingEvent) error

type Consumer struct {
	url     string
	queue   string
	handler Handler
	log     *zap.Logger
}

func NewConsumer(url, queue string, handler Handler, log *zap.Logger) *Consumer {
	return &Consumer{
		url:     url,
		queue:   queue,
		handler: handler,
		log:     log.With(zap.String("component", "booking_consumer"), zap.String("queue", queue)),
	}
}

// Run keeps a consumer attached to the queue, reconnecting with exponential
// backoff, until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("Failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.log.Info("Consumer stopped")
			return
		}
		c.log.Warn("Consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.log.Warn("Failed to set QoS", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.log.Info("Consuming booking events")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := Decode(d.Body)
	if err == nil {
		err = c.handler(ctx, event)
	}
	if err != nil {
		c.log.Error("Failed to handle booking event",
			zap.Error(err),
			zap.String("message_id", d.MessageId),
		)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func Decode(body []byte) (notify.BookingEvent, error) {
	var event notify.BookingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("decode booking event: %w", err)
	}
	if event.Type == "" || event.BookingID == "" {
		return event, errors.New("decode booking event: missing type or booking id")
	}
	return event, nil
}

// LogHandler records every event in the structured log. Email and ticket
// rendering happen downstream of this log.
func LogHandler(log *zap.Logger) Handler {
	return func(_ context.Context, e notify.BookingEvent) error {
		log.Info("Booking notification",
			zap.String("type", string(e.Type)),
			zap.String("booking_id", e.BookingID),
			zap.String("order_id", e.OrderID),
			zap.String("user_id", e.UserID),
			zap.String("vehicle_id", e.VehicleID),
			zap.String("seat", e.SeatLabel),
			zap.Float64("fare", e.Fare),
			zap.Time("occurred_at", e.OccurredAt),
		)
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
