package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/core/recovery"
	"github.com/kilianp07/chargetrack/core/stats"
)

func TestFileSnapshotStore_RoundTrip(t *testing.T) {
	s, err := NewFileSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	loaded, err := s.Load(context.Background(), "garage")
	if err != nil || loaded != nil {
		t.Fatalf("empty slot must load as nil, got %v %v", loaded, err)
	}

	sess := model.NewSession("garage", "Garage Charger", time.Now().UTC().Truncate(time.Second))
	sess.EnergyKWh = 3.3
	rfid := int64(7)
	snap := recovery.Snapshot{ChargerID: "garage", Session: sess, RFID: &rfid, SavedAt: time.Now().UTC()}
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err = s.Load(context.Background(), "garage")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.Session.ID != sess.ID || loaded.Session.EnergyKWh != 3.3 {
		t.Fatalf("round trip wrong: %+v", loaded)
	}
	if loaded.RFID == nil || *loaded.RFID != 7 {
		t.Fatalf("rfid lost: %v", loaded.RFID)
	}

	if err := s.Clear(context.Background(), "garage"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	loaded, err = s.Load(context.Background(), "garage")
	if err != nil || loaded != nil {
		t.Fatalf("cleared slot must load as nil")
	}
	if err := s.Clear(context.Background(), "garage"); err != nil {
		t.Fatalf("clearing an empty slot must not fail: %v", err)
	}
}

func TestFileSnapshotStore_OverwritesSlot(t *testing.T) {
	s, err := NewFileSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	first := recovery.Snapshot{ChargerID: "garage", Session: model.NewSession("garage", "", time.Now())}
	second := recovery.Snapshot{ChargerID: "garage", Session: model.NewSession("garage", "", time.Now())}
	_ = s.Save(context.Background(), first)
	_ = s.Save(context.Background(), second)

	loaded, err := s.Load(context.Background(), "garage")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Session.ID != second.Session.ID {
		t.Fatalf("slot must hold the latest snapshot")
	}
}

func TestFileStatsStore_RoundTrip(t *testing.T) {
	path := t.TempDir() + "/stats.json"
	s, err := NewFileStatsStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	loaded, err := s.Load(context.Background())
	if err != nil || loaded != nil {
		t.Fatalf("missing file must load as nil")
	}

	snap := stats.Snapshot{
		Users: map[string]stats.UserStats{
			"u1": {UserID: "u1", UserName: "Petra", SessionCount: 3, EnergyKWh: 12.6},
		},
		SeenIDs:   []string{"s1", "s2"},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Save(context.Background(), snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err = s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Users["u1"].SessionCount != 3 || len(loaded.SeenIDs) != 2 {
		t.Fatalf("round trip wrong: %+v", loaded)
	}
}

func TestFileStatsStore_CorruptFile(t *testing.T) {
	path := t.TempDir() + "/stats.json"
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := NewFileStatsStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("corrupt file must surface an error")
	}
}
