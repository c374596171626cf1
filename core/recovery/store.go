// Package recovery persists the engine's active-session aggregate so a
// session survives a host-process restart. Exactly one snapshot slot exists
// per charger instance; each write overwrites the prior one.
package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/chargetrack/core/model"
)

// Snapshot is an at-most-slightly-stale copy of the active session plus the
// RFID indicator that was in effect when it was taken. Used only at startup
// and on the periodic save timer.
type Snapshot struct {
	ChargerID string        `json:"charger_id"`
	Session   model.Session `json:"session"`
	RFID      *int64        `json:"rfid,omitempty"`
	SavedAt   time.Time     `json:"saved_at"`
}

// Store reads and writes the single snapshot slot for a charger.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	// Load returns nil when no snapshot exists.
	Load(ctx context.Context, chargerID string) (*Snapshot, error)
	Clear(ctx context.Context, chargerID string) error
}

// MemoryStore keeps snapshots in memory, for tests and embedded use.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Snapshot
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Snapshot{}}
}

func (s *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	s.data[snap.ChargerID] = snap
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, chargerID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[chargerID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *MemoryStore) Clear(_ context.Context, chargerID string) error {
	s.mu.Lock()
	delete(s.data, chargerID)
	s.mu.Unlock()
	return nil
}
