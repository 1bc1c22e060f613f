// Package checkpoint persists per-channel progress as a single JSON file
// mapping channel id to the last-seen message id.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"message_archiver/internal/domain"
)

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the checkpoint file. A missing file yields an empty map; an
// unreadable or unparseable file is an error, since continuing would risk
// silent reprocessing or loss.
func (s *FileStore) Load() (map[domain.Snowflake]domain.Snowflake, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[domain.Snowflake]domain.Snowflake), nil
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var checkpoints map[domain.Snowflake]domain.Snowflake
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		return nil, fmt.Errorf("parse checkpoint file %s: %w", s.path, err)
	}
	if checkpoints == nil {
		checkpoints = make(map[domain.Snowflake]domain.Snowflake)
	}
	return checkpoints, nil
}

// Save overwrites the checkpoint file. The content is written to a temp
// file in the same directory and renamed into place, so a concurrent reader
// never observes a partial write.
func (s *FileStore) Save(checkpoints map[domain.Snowflake]domain.Snowflake) error {
	data, err := json.Marshal(checkpoints)
	if err != nil {
		return fmt.Errorf("marshal checkpoints: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp checkpoint file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync temp checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp checkpoint file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}
