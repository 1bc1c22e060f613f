package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"message_archiver/internal/domain"
)

// Source lists messages in a channel newer than a given id, newest first.
// Implementations report permission and rate-limit conditions using the
// types in internal/source.
type Source interface {
	FetchSince(ctx context.Context, channel domain.Channel, after domain.Snowflake) ([]domain.Message, error)
}

// Sink persists a batch of messages for a channel. Persist must be
// idempotent per message id: checkpoint advancement does not wait for sink
// success, so a batch can be redelivered after a failure. Sinks must not
// mutate the batch.
type Sink interface {
	Name() string
	Persist(ctx context.Context, channel domain.Channel, messages []domain.Message) error
	Close() error
}

type CheckpointStore interface {
	Load() (map[domain.Snowflake]domain.Snowflake, error)
	Save(checkpoints map[domain.Snowflake]domain.Snowflake) error
}
