package service

import (
	"context"
	"fmt"
	"log/slog"

	"message_archiver/internal/domain"
	"message_archiver/internal/telemetry"
)

// Dispatcher fans a fetched batch out to every configured sink in order.
// Each sink is guarded independently: a failing or panicking sink is logged
// and the remaining sinks still run.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewDispatcher(sinks []Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		logger: logger,
	}
}

// Dispatch hands the batch to all sinks and returns how many of them failed.
// Failures never abort the cycle; the log carries enough context for an
// operator to replay the affected messages manually.
func (d *Dispatcher) Dispatch(ctx context.Context, channel domain.Channel, messages []domain.Message) int {
	failures := 0
	for _, sink := range d.sinks {
		if err := d.persist(ctx, sink, channel, messages); err != nil {
			failures++
			telemetry.SinkFailures.WithLabelValues(sink.Name()).Inc()
			d.logger.Error("sink persist failed",
				"sink", sink.Name(),
				"channel", channel.Name,
				"channel_id", channel.ID,
				"messages", len(messages),
				"first_id", messages[0].ID,
				"last_id", messages[len(messages)-1].ID,
				"error", err,
			)
		}
	}
	return failures
}

func (d *Dispatcher) persist(ctx context.Context, sink Sink, channel domain.Channel, messages []domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sink.Persist(ctx, channel, messages)
}
