package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"message_archiver/internal/domain"
	"message_archiver/internal/source"
	"message_archiver/internal/telemetry"
)

// Fetcher wraps a Source with the retry policy for rate limits. Permission
// failures become an empty result; anything else is surfaced to the caller.
type Fetcher struct {
	source Source
	// maxRateLimitRetries caps consecutive rate-limit waits for one
	// request. 0 means retry forever, which matches the source's own
	// bounded throttling.
	maxRateLimitRetries int
	logger              *slog.Logger
}

func NewFetcher(src Source, maxRateLimitRetries int, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:              src,
		maxRateLimitRetries: maxRateLimitRetries,
		logger:              logger,
	}
}

// FetchSince returns messages in the channel newer than after, newest first.
// A nil result with nil error means the channel was skipped this cycle.
func (f *Fetcher) FetchSince(ctx context.Context, channel domain.Channel, after domain.Snowflake) ([]domain.Message, error) {
	rateLimitHits := 0

	for {
		messages, err := f.source.FetchSince(ctx, channel, after)
		if err == nil {
			return messages, nil
		}

		if errors.Is(err, source.ErrPermissionDenied) {
			f.logger.Warn("missing permissions to access channel, skipping",
				"channel", channel.Name,
				"channel_id", channel.ID,
			)
			return nil, nil
		}

		var rl *source.RateLimitError
		if errors.As(err, &rl) {
			rateLimitHits++
			if f.maxRateLimitRetries > 0 && rateLimitHits > f.maxRateLimitRetries {
				return nil, fmt.Errorf("channel %s: gave up after %d consecutive rate limits: %w",
					channel.ID, f.maxRateLimitRetries, err)
			}

			telemetry.RateLimitWaits.Inc()
			f.logger.Warn("rate limit hit, waiting",
				"channel", channel.Name,
				"channel_id", channel.ID,
				"retry_after", rl.RetryAfter,
				"consecutive", rateLimitHits,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(rl.RetryAfter):
			}
			continue
		}

		return nil, fmt.Errorf("fetch channel %s: %w", channel.ID, err)
	}
}
