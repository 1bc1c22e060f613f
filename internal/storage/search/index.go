// Package search implements the search-index sink on SQLite FTS5. The base
// messages table is the source of truth; an external-content FTS table is
// kept in sync by triggers, so an ignored duplicate insert never reaches
// the index twice.
package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"message_archiver/internal/domain"
)

type Index struct {
	db *sql.DB
}

func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	// Single writer; the archiver dispatches sequentially anyway.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	channel_name TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_name TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL,
	attachments TEXT NOT NULL DEFAULT '[]'
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	content, author_name, channel_name,
	content='messages', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, content, author_name, channel_name)
	VALUES (new.rowid, new.content, new.author_name, new.channel_name);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, content, author_name, channel_name)
	VALUES ('delete', old.rowid, old.content, old.author_name, old.channel_name);
END;
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure search schema: %w", err)
	}
	return nil
}

func (i *Index) Name() string {
	return "search"
}

func (i *Index) Persist(ctx context.Context, channel domain.Channel, messages []domain.Message) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages (
			id, channel_id, channel_name, author_id, author_name,
			content, created_at, attachments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range messages {
		attachments, err := json.Marshal(m.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments for %s: %w", m.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			m.ID.String(),
			m.ChannelID.String(),
			m.ChannelName,
			m.AuthorID.String(),
			m.AuthorName,
			m.Content,
			m.Timestamp.UTC().Format(time.RFC3339Nano),
			string(attachments),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Search runs a full-text query over message content, author and channel
// names, most relevant first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT m.id, m.channel_id, m.channel_name, m.author_id, m.author_name,
		       m.content, m.created_at, m.attachments
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m                       domain.Message
			id, channelID, authorID string
			createdAt, attachments  string
		)
		if err := rows.Scan(&id, &channelID, &m.ChannelName, &authorID,
			&m.AuthorName, &m.Content, &createdAt, &attachments); err != nil {
			return nil, err
		}
		if m.ID, err = domain.ParseSnowflake(id); err != nil {
			return nil, err
		}
		if m.ChannelID, err = domain.ParseSnowflake(channelID); err != nil {
			return nil, err
		}
		if m.AuthorID, err = domain.ParseSnowflake(authorID); err != nil {
			return nil, err
		}
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (i *Index) Close() error {
	return i.db.Close()
}
