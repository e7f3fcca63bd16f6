package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// FileStore keeps the snapshot in a single JSON object file mapping guild ID
// to [Entry]. Writes go to a temporary file in the same directory that is
// then renamed over the target, so readers never see a partial file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing file yields an empty map. Entries that
// cannot be decoded are skipped and logged.
func (s *FileStore) Load(_ context.Context) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]Entry{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("resume: decode %s: %w", s.path, err)
	}

	out := make(map[string]Entry, len(raw))
	for guildID, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			slog.Warn("resume: skipping malformed entry", "guild_id", guildID, "error", err)
			continue
		}
		out[guildID] = e
	}
	return out, nil
}

// Save atomically replaces the file with entries.
func (s *FileStore) Save(_ context.Context, entries map[string]Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entries == nil {
		entries = map[string]Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("resume: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("resume: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("resume: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("resume: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("resume: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("resume: rename: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
