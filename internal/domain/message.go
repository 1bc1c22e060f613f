package domain

import "time"

// Channel is a monitored message stream, supplied by configuration.
// Name is used for logging only.
type Channel struct {
	ID   Snowflake
	Name string
}

// Message is a single record fetched from the source. IDs are monotonically
// increasing within a channel, which is what checkpointing relies on.
// Messages are immutable once fetched; sinks must not modify them.
type Message struct {
	ID          Snowflake `json:"id"`
	ChannelID   Snowflake `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	AuthorID    Snowflake `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []string  `json:"attachments,omitempty"`
}
