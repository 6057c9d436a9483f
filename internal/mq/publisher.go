package mq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"comanda/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchange = "orders_topic"

// Publisher bridges committed order events to RabbitMQ for external
// consumers (kitchen displays, reporting). It is optional: the server
// runs without it when no broker is configured. Delivery is
// fire-and-forget, matching the at-most-once contract of the realtime
// fan-out.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

// Dial connects to the broker and declares the orders topic exchange.
func Dial(url string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, logger: logger}, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// envelope is the wire shape of a bridged event.
type envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Publish sends the event with routing key "orders.<event_type>".
// Errors are logged and swallowed: the broker is an observer, never a
// participant in the mutation path.
func (p *Publisher) Publish(ev domain.Event) {
	body, err := json.Marshal(envelope{
		Event:     string(ev.Type),
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Data:      ev.Data,
	})
	if err != nil {
		p.logger.Error("mq marshal failed", slog.String("event", string(ev.Type)), slog.String("error", err.Error()))
		return
	}

	err = p.ch.PublishWithContext(context.Background(), exchange, "orders."+string(ev.Type), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		p.logger.Error("mq publish failed", slog.String("event", string(ev.Type)), slog.String("error", err.Error()))
	}
}
