//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"message_archiver/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_messages.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM messages")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) testBatch() []domain.Message {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return []domain.Message{
		{ID: 12, ChannelID: 111, ChannelName: "general", AuthorID: 7, AuthorName: "alice",
			Content: "newest", Timestamp: now},
		{ID: 11, ChannelID: 111, ChannelName: "general", AuthorID: 8, AuthorName: "bob",
			Content: "middle", Timestamp: now,
			Attachments: []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}},
		{ID: 10, ChannelID: 111, ChannelName: "general", AuthorID: 7, AuthorName: "alice",
			Content: "oldest", Timestamp: now},
	}
}

func (s *PostgresIntegrationSuite) TestMessageSink_Persist() {
	sink := NewMessageSink(s.db)
	channel := domain.Channel{ID: 111, Name: "general"}

	err := sink.Persist(s.ctx, channel, s.testBatch())
	s.NoError(err)

	count, err := sink.CountByChannel(s.ctx, 111)
	s.NoError(err)
	s.Equal(3, count)

	var content string
	err = s.db.GetContext(s.ctx, &content, "SELECT content FROM messages WHERE id = $1", 12)
	s.NoError(err)
	s.Equal("newest", content)
}

func (s *PostgresIntegrationSuite) TestMessageSink_Persist_Idempotent() {
	sink := NewMessageSink(s.db)
	channel := domain.Channel{ID: 111, Name: "general"}
	batch := s.testBatch()

	s.NoError(sink.Persist(s.ctx, channel, batch))
	s.NoError(sink.Persist(s.ctx, channel, batch))

	count, err := sink.CountByChannel(s.ctx, 111)
	s.NoError(err)
	s.Equal(3, count)
}

func (s *PostgresIntegrationSuite) TestMessageSink_Persist_Attachments() {
	sink := NewMessageSink(s.db)
	channel := domain.Channel{ID: 111, Name: "general"}

	s.NoError(sink.Persist(s.ctx, channel, s.testBatch()))

	var attachments pq.StringArray
	err := s.db.QueryRowContext(s.ctx,
		"SELECT attachments FROM messages WHERE id = $1", 11,
	).Scan(&attachments)
	s.Require().NoError(err)
	s.Equal(pq.StringArray{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}, attachments)
}
