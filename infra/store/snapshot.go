// Package store provides file-backed persistence for recovery snapshots and
// aggregated statistics. Writes go through a temp file and rename so a crash
// mid-write never corrupts the previous state.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kilianp07/chargetrack/core/recovery"
)

// FileSnapshotStore keeps one snapshot file per charger under a directory.
type FileSnapshotStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileSnapshotStore creates the directory if needed.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(chargerID string) string {
	return filepath.Join(s.dir, chargerID+".json")
}

func (s *FileSnapshotStore) Save(_ context.Context, snap recovery.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path(snap.ChargerID), snap)
}

func (s *FileSnapshotStore) Load(_ context.Context, chargerID string) (*recovery.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(chargerID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap recovery.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *FileSnapshotStore) Clear(_ context.Context, chargerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(chargerID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func writeAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
