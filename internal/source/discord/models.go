package discord

import (
	"time"

	"message_archiver/internal/domain"
)

// apiMessage mirrors the message object returned by the channel messages
// endpoint. Ids arrive as strings; domain.Snowflake accepts both forms.
type apiMessage struct {
	ID          domain.Snowflake `json:"id"`
	ChannelID   domain.Snowflake `json:"channel_id"`
	Author      apiAuthor        `json:"author"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	Attachments []apiAttachment  `json:"attachments"`
}

type apiAuthor struct {
	ID       domain.Snowflake `json:"id"`
	Username string           `json:"username"`
}

type apiAttachment struct {
	URL string `json:"url"`
}

// rateLimitBody is the JSON payload accompanying a 429 response.
// retry_after is in seconds, fractional.
type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}
