package service

import (
	"context"
	"log/slog"
	"time"

	"message_archiver/internal/domain"
	"message_archiver/internal/telemetry"
)

// Archiver runs one archive cycle: for each configured channel it fetches
// messages newer than the channel's checkpoint, dispatches them to the
// sinks, and advances the in-memory checkpoint. The checkpoint map is owned
// exclusively by the Archiver and flushed to the store once per cycle.
type Archiver struct {
	fetcher     *Fetcher
	dispatcher  *Dispatcher
	store       CheckpointStore
	checkpoints map[domain.Snowflake]domain.Snowflake
	channels    []domain.Channel
	pace        time.Duration
	logger      *slog.Logger
}

func NewArchiver(
	fetcher *Fetcher,
	dispatcher *Dispatcher,
	store CheckpointStore,
	checkpoints map[domain.Snowflake]domain.Snowflake,
	channels []domain.Channel,
	pace time.Duration,
	logger *slog.Logger,
) *Archiver {
	if checkpoints == nil {
		checkpoints = make(map[domain.Snowflake]domain.Snowflake)
	}
	return &Archiver{
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		store:       store,
		checkpoints: checkpoints,
		channels:    channels,
		pace:        pace,
		logger:      logger,
	}
}

// ArchiveCycle processes every configured channel once. The checkpoint
// flush is deferred so that a cancellation mid-cycle still persists the
// progress of channels completed so far. A save failure is logged and the
// process continues on the stale on-disk state; the next successful save
// corrects it.
func (a *Archiver) ArchiveCycle(ctx context.Context) (stats *domain.CycleStats, err error) {
	start := time.Now()
	stats = &domain.CycleStats{Channels: len(a.channels)}

	defer func() {
		if saveErr := a.store.Save(a.checkpoints); saveErr != nil {
			telemetry.CheckpointSaveFailures.Inc()
			a.logger.Error("failed to save checkpoints", "error", saveErr)
		}
		stats.Duration = time.Since(start)
	}()

	for _, channel := range a.channels {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}

		a.archiveChannel(ctx, channel, stats)

		if a.pace > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(a.pace):
			}
		}
	}

	a.logger.Info("cycle completed",
		"channels", stats.Channels,
		"fetched", stats.Fetched,
		"skipped", stats.Skipped,
		"sink_failures", stats.SinkFailures,
		"errors", stats.Errors,
		"duration", time.Since(start),
	)

	return stats, nil
}

func (a *Archiver) archiveChannel(ctx context.Context, channel domain.Channel, stats *domain.CycleStats) {
	after := a.checkpoints[channel.ID]

	a.logger.Debug("fetching messages",
		"channel", channel.Name,
		"channel_id", channel.ID,
		"after", after,
	)

	messages, err := a.fetcher.FetchSince(ctx, channel, after)
	if err != nil {
		stats.Errors++
		a.logger.Error("fetch failed, skipping channel for this cycle",
			"channel", channel.Name,
			"channel_id", channel.ID,
			"error", err,
		)
		return
	}

	if len(messages) == 0 {
		stats.Skipped++
		a.logger.Info("no new messages", "channel", channel.Name)
		return
	}

	stats.Fetched += len(messages)
	telemetry.MessagesFetched.WithLabelValues(channel.Name).Add(float64(len(messages)))

	stats.SinkFailures += a.dispatcher.Dispatch(ctx, channel, messages)
	stats.Dispatched += len(messages)

	// Index 0 is the newest message. The checkpoint advances even when a
	// sink failed; sinks are idempotent, redelivery is handled there.
	a.checkpoints[channel.ID] = messages[0].ID

	a.logger.Info("archived messages",
		"channel", channel.Name,
		"count", len(messages),
		"last_message_id", messages[0].ID,
	)
}

// Checkpoints exposes a copy of the current in-memory checkpoint map.
func (a *Archiver) Checkpoints() map[domain.Snowflake]domain.Snowflake {
	out := make(map[domain.Snowflake]domain.Snowflake, len(a.checkpoints))
	for k, v := range a.checkpoints {
		out[k] = v
	}
	return out
}
