//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"message_archiver/internal/domain"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestSink_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	sink, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(sink)
	s.Equal("amqp", sink.Name())

	err = sink.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestSink_PersistPublishesEveryMessage() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-batch",
		RoutingKey: "test-routing-key-batch",
		QueueName:  "test-queue-batch",
	}

	sink, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer sink.Close()

	now := time.Now().UTC().Truncate(time.Millisecond)
	channel := domain.Channel{ID: 111, Name: "general"}
	batch := []domain.Message{
		{ID: 12, ChannelID: 111, ChannelName: "general", AuthorID: 7, AuthorName: "alice",
			Content: "newest", Timestamp: now},
		{ID: 11, ChannelID: 111, ChannelName: "general", AuthorID: 8, AuthorName: "bob",
			Content: "oldest", Timestamp: now,
			Attachments: []string{"https://cdn.example.com/a.png"}},
	}

	err = sink.Persist(s.ctx, channel, batch)
	s.NoError(err)

	first := s.consumeMessage(cfg)
	s.Require().NotNil(first)
	s.Equal("application/json", first.ContentType)
	s.Equal("12", first.MessageId)
	s.Equal(uint8(amqp.Persistent), first.DeliveryMode)

	var envelope MessageEnvelope
	s.NoError(json.Unmarshal(first.Body, &envelope))
	s.Equal("general", envelope.Channel)
	s.Equal(domain.Snowflake(12), envelope.Message.ID)
	s.Equal("alice", envelope.Message.AuthorName)
	s.False(envelope.Timestamp.IsZero())

	second := s.consumeMessage(cfg)
	s.Require().NotNil(second)
	s.Equal("11", second.MessageId)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
