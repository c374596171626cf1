package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/chargetrack/core/stats"
)

// FileStatsStore persists the full statistics snapshot to one JSON file.
type FileStatsStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStatsStore creates the parent directory if needed.
func NewFileStatsStore(path string) (*FileStatsStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("stats dir: %w", err)
		}
	}
	return &FileStatsStore{path: path}, nil
}

func (s *FileStatsStore) Save(_ context.Context, snap stats.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, snap)
}

func (s *FileStatsStore) Load(_ context.Context) (*stats.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap stats.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &snap, nil
}
