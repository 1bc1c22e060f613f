// Package file implements the flat-file sink: one JSON document per line,
// appended to a single output file.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"message_archiver/internal/domain"
)

type Sink struct {
	mu   sync.Mutex
	path string
	file *os.File
	// seen tracks ids already present in the file so a redelivered batch
	// does not append duplicate lines.
	seen map[domain.Snowflake]struct{}
}

// Open creates or opens the output file for appending. Existing entries are
// scanned once so that persistence stays idempotent across restarts.
func Open(path string) (*Sink, error) {
	seen, err := scanExisting(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	return &Sink{
		path: path,
		file: f,
		seen: seen,
	}, nil
}

func scanExisting(path string) (map[domain.Snowflake]struct{}, error) {
	seen := make(map[domain.Snowflake]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return seen, nil
		}
		return nil, fmt.Errorf("scan output file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry struct {
			ID domain.Snowflake `json:"id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		seen[entry.ID] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan output file: %w", err)
	}
	return seen, nil
}

func (s *Sink) Name() string {
	return "file"
}

func (s *Sink) Persist(ctx context.Context, channel domain.Channel, messages []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wrote := false
	for _, m := range messages {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message %s: %w", m.ID, err)
		}
		if _, err := s.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write message %s: %w", m.ID, err)
		}
		s.seen[m.ID] = struct{}{}
		wrote = true
	}

	if wrote {
		return s.file.Sync()
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
