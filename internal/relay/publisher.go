// Package relay hands relay-signals to the external chat transport over a
// RabbitMQ topic exchange. Delivery is at-least-once; state transitions have
// already committed by the time a signal is published.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"supportdesk/internal/services"
	"supportdesk/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const exchangeName = "support.relay"

// Publisher forwards relay-signals to the transport layer
type Publisher interface {
	Publish(ctx context.Context, signal *services.RelaySignal) error
	Close()
}

// AMQPPublisher publishes relay-signals to the support.relay topic exchange
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher connects to RabbitMQ and declares the relay exchange
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

// Publish sends one relay-signal. Routing key is relay.customer or
// relay.agent depending on the target side.
func (p *AMQPPublisher) Publish(ctx context.Context, signal *services.RelaySignal) error {
	body, err := json.Marshal(signal)
	if err != nil {
		return err
	}
	routingKey := "relay.customer"
	if signal.Target == models.RelayToAgent {
		routingKey = "relay.agent"
	}
	return p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	})
}

// Close shuts down the channel and connection
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NoopPublisher drops relay-signals, used when no broker is configured and
// transports poll the API instead
type NoopPublisher struct{}

// Publish logs and discards the signal
func (NoopPublisher) Publish(_ context.Context, signal *services.RelaySignal) error {
	log.Debug().
		Str("target", string(signal.Target)).
		Str("conversation_id", signal.ConversationID.String()).
		Msg("relay publisher disabled, signal dropped")
	return nil
}

// Close is a no-op
func (NoopPublisher) Close() {}
