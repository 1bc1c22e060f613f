package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"message_archiver/internal/domain"
)

// RabbitMQ is an optional queue sink: every archived message is published
// to an exchange for downstream consumers. Publishing is at-least-once; the
// message id travels as the AMQP MessageId property so consumers can
// deduplicate redeliveries.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

type MessageEnvelope struct {
	Channel   string         `json:"channel"`
	Message   domain.Message `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

func (r *RabbitMQ) Name() string {
	return "amqp"
}

func (r *RabbitMQ) Persist(ctx context.Context, channel domain.Channel, messages []domain.Message) error {
	for _, m := range messages {
		envelope := MessageEnvelope{
			Channel:   channel.Name,
			Message:   m,
			Timestamp: time.Now().UTC(),
		}

		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}

		err = r.channel.PublishWithContext(
			ctx,
			r.exchange,
			r.routingKey,
			false,
			false,
			amqp.Publishing{
				DeliveryMode: amqp.Persistent,
				ContentType:  "application/json",
				MessageId:    m.ID.String(),
				Body:         body,
				Timestamp:    time.Now(),
			},
		)
		if err != nil {
			return fmt.Errorf("publish message %s: %w", m.ID, err)
		}
	}

	r.logger.Debug("published messages",
		"channel", channel.Name,
		"count", len(messages),
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
