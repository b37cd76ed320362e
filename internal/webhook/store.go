package webhook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persister saves the full definition list. Save replaces the previous
// content wholesale.
type Persister interface {
	Save(defs []*Definition) error
}

// FileStore persists webhook definitions as a JSON array on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. An empty path selects
// <user config dir>/cliphook/webhooks.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("webhook store: user config dir: %w", err)
		}
		path = filepath.Join(dir, "cliphook", "webhooks.json")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads all definitions. A missing file yields an empty list.
func (s *FileStore) Load() ([]*Definition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("webhook store: read %s: %w", s.path, err)
	}
	var defs []*Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("webhook store: decode %s: %w", s.path, err)
	}
	return defs, nil
}

// Save writes the full definition list, creating the directory if needed.
func (s *FileStore) Save(defs []*Definition) error {
	if defs == nil {
		defs = []*Definition{}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("webhook store: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return fmt.Errorf("webhook store: encode: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("webhook store: write %s: %w", s.path, err)
	}
	return nil
}
