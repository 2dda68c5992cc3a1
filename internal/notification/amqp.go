// Package notification publishes booking lifecycle events to the message
// broker. The notification microservice consumes them; delivery channels and
// formatting live entirely on that side.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

const eventsExchange = "booking.events"

type AMQPNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewAMQPNotifier dials the broker and declares the durable topic exchange
// the events are routed through. Routing key is the event type, so consumers
// can bind to booking.confirmed, booking.*, etc.
func NewAMQPNotifier(url string, logger *slog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPNotifier{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, event domain.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return n.channel.PublishWithContext(
		ctx,
		eventsExchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (n *AMQPNotifier) Close() {
	if err := n.channel.Close(); err != nil {
		n.logger.Error("failed to close AMQP channel", "error", err)
	}

	if err := n.conn.Close(); err != nil {
		n.logger.Error("failed to close AMQP connection", "error", err)
	}
}

// NopNotifier drops events. Used when no broker is configured.
type NopNotifier struct {
}

func NewNopNotifier() *NopNotifier {
	return &NopNotifier{}
}

func (n *NopNotifier) Publish(ctx context.Context, event domain.BookingEvent) error {
	return nil
}
