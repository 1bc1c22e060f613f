package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"message_archiver/internal/domain"
)

// MessageSink persists message batches to PostgreSQL. Inserts are keyed on
// the message id with ON CONFLICT DO NOTHING, so redelivered batches are
// absorbed without duplicates.
type MessageSink struct {
	db *sqlx.DB
}

func NewMessageSink(db *sqlx.DB) *MessageSink {
	return &MessageSink{db: db}
}

func (s *MessageSink) Name() string {
	return "postgres"
}

func (s *MessageSink) Persist(ctx context.Context, channel domain.Channel, messages []domain.Message) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO messages (
			id, channel_id, channel_name, author_id, author_name,
			content, created_at, attachments
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	for _, m := range messages {
		_, err := tx.ExecContext(ctx, query,
			int64(m.ID),
			int64(m.ChannelID),
			m.ChannelName,
			int64(m.AuthorID),
			m.AuthorName,
			m.Content,
			m.Timestamp,
			pq.Array(m.Attachments),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// CountByChannel returns the number of stored messages for a channel.
func (s *MessageSink) CountByChannel(ctx context.Context, channelID domain.Snowflake) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM messages WHERE channel_id = $1", int64(channelID))
	return count, err
}

func (s *MessageSink) Close() error {
	return s.db.Close()
}
