package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"message_archiver/internal/domain"
	"message_archiver/internal/source"
)

// Config holds Discord source configuration.
type Config struct {
	BaseURL  string
	Token    string
	PageSize int
	Timeout  time.Duration
}

// Source fetches channel messages from a Discord-compatible HTTP API.
type Source struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pageSize   int
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  cfg.BaseURL,
		token:    cfg.Token,
		pageSize: pageSize,
		logger:   logger.With("source", "discord"),
	}
}

// FetchSince returns all messages in the channel newer than after, newest
// first. after == 0 means no checkpoint: the full available history is
// fetched, bounded only by the source's pagination.
//
// Outcomes follow the source taxonomy: source.ErrPermissionDenied when the
// channel is inaccessible, *source.RateLimitError when throttled, and a
// plain error for anything else. Rate limits are not retried here; that is
// the caller's policy.
func (s *Source) FetchSince(ctx context.Context, channel domain.Channel, after domain.Snowflake) ([]domain.Message, error) {
	var all []apiMessage
	var before domain.Snowflake

	for {
		page, err := s.fetchPage(ctx, channel.ID, before)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		done := false
		for _, m := range page {
			if m.ID <= after {
				done = true
				break
			}
			all = append(all, m)
		}

		s.logger.Debug("fetched page",
			"channel_id", channel.ID,
			"messages", len(page),
			"kept", len(all),
		)

		if done || len(page) < s.pageSize {
			break
		}
		// Pages come newest-first; continue backwards from the oldest seen.
		before = page[len(page)-1].ID
	}

	return s.transform(channel, all), nil
}

func (s *Source) fetchPage(ctx context.Context, channelID, before domain.Snowflake) ([]apiMessage, error) {
	url := fmt.Sprintf("%s/channels/%s/messages?limit=%d", s.baseURL, channelID, s.pageSize)
	if before != 0 {
		url += "&before=" + before.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "MessageArchiver/1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bot "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var page []apiMessage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return page, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("channel %s: %w", channelID, source.ErrPermissionDenied)
	case http.StatusTooManyRequests:
		return nil, &source.RateLimitError{RetryAfter: retryAfter(resp)}
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// retryAfter extracts the wait the source demands from a 429 response,
// preferring the JSON body over the Retry-After header.
func retryAfter(resp *http.Response) time.Duration {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var rl rateLimitBody
		if json.Unmarshal(body, &rl) == nil && rl.RetryAfter > 0 {
			return time.Duration(rl.RetryAfter * float64(time.Second))
		}
	}

	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}

	return time.Second
}

func (s *Source) transform(channel domain.Channel, msgs []apiMessage) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := domain.Message{
			ID:          m.ID,
			ChannelID:   channel.ID,
			ChannelName: channel.Name,
			AuthorID:    m.Author.ID,
			AuthorName:  m.Author.Username,
			Content:     m.Content,
			Timestamp:   m.Timestamp,
		}
		for _, a := range m.Attachments {
			msg.Attachments = append(msg.Attachments, a.URL)
		}
		out = append(out, msg)
	}
	return out
}
