// Package stats maintains cumulative per-user charging statistics with a
// monthly breakdown. Sessions are delivered exactly once: a bounded window of
// recently recorded session ids makes re-delivery (replay, recovery overlap)
// a no-op.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/chargetrack/core/logger"
	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/core/session"
)

// Keys for sessions that cannot be attributed to a configured regular user.
const (
	KeyUnknown = "unknown"
	KeyGuest   = "guest"
)

const defaultDedupeWindow = 512

// Config controls aggregation behavior.
type Config struct {
	// PerGuestStats tracks each configured guest user separately instead of
	// folding all guests into one shared aggregate.
	PerGuestStats bool `json:"per_guest_stats"`
	// DedupeWindow is the number of recent session ids remembered for
	// idempotent delivery.
	DedupeWindow int `json:"dedupe_window"`
}

// SetDefaults applies the stock defaults.
func (c *Config) SetDefaults() {
	if c.DedupeWindow == 0 {
		c.DedupeWindow = defaultDedupeWindow
	}
}

// MonthStats accumulates one calendar month for one user.
type MonthStats struct {
	SessionCount int     `json:"session_count"`
	EnergyKWh    float64 `json:"energy_kwh"`
	CostTotal    float64 `json:"cost_total"`
	DurationS    float64 `json:"duration_s"`
}

// UserStats is the lifetime aggregate for one user key.
type UserStats struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	UserType string `json:"user_type"`

	SessionCount int     `json:"session_count"`
	EnergyKWh    float64 `json:"energy_kwh"`
	CostTotal    float64 `json:"cost_total"`
	// ChargeTotal is what the user owes, where guest pricing overrides the
	// base cost; equal to CostTotal otherwise.
	ChargeTotal float64 `json:"charge_total"`
	MaxPowerW   float64 `json:"max_power_w"`
	DurationS   float64 `json:"duration_s"`

	// Months is keyed by "YYYY-MM" of the session end time.
	Months map[string]MonthStats `json:"months"`

	// LastSession keeps the most recent session for display, mainly so a
	// guest can be shown what their latest visit cost.
	LastSession *model.Session `json:"last_session,omitempty"`
}

// Snapshot is the full persisted aggregation state.
type Snapshot struct {
	Users map[string]UserStats `json:"users"`
	// SeenIDs preserves the dedupe window across restarts, oldest first.
	SeenIDs   []string  `json:"seen_ids,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists the aggregation state between runs.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	// Load returns nil when no state has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)
}

// Aggregator folds completed sessions into per-user statistics.
type Aggregator struct {
	cfg   Config
	store Store
	log   logger.Logger

	mu    sync.RWMutex
	users map[string]UserStats
	seen  map[string]struct{}
	order []string
}

// New creates an empty aggregator. store may be nil for in-memory use.
func New(cfg Config, store Store, log logger.Logger) *Aggregator {
	cfg.SetDefaults()
	return &Aggregator{
		cfg:   cfg,
		store: store,
		log:   log,
		users: map[string]UserStats{},
		seen:  map[string]struct{}{},
	}
}

// Restore loads previously persisted statistics. Load errors leave the
// aggregator empty; statistics degrade, ingestion does not stop.
func (a *Aggregator) Restore(ctx context.Context) {
	if a.store == nil {
		return
	}
	snap, err := a.store.Load(ctx)
	if err != nil {
		a.log.Errorf("stats load failed: %v", err)
		return
	}
	if snap == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if snap.Users != nil {
		a.users = snap.Users
	}
	for _, id := range snap.SeenIDs {
		a.remember(id)
	}
}

// Run consumes engine events until the channel closes or the context is
// cancelled, persisting after every recorded session.
func (a *Aggregator) Run(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != session.EventCompleted {
				continue
			}
			if a.Record(ev.Session) {
				a.persist(ctx)
			}
		}
	}
}

// Record folds one completed session in. Returns false when the session id
// was already recorded.
func (a *Aggregator) Record(s model.Session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seen[s.ID]; dup {
		a.log.Debugf("session %s already recorded, skipping", s.ID)
		return false
	}
	a.remember(s.ID)

	key, name := a.bucket(s)
	u, ok := a.users[key]
	if !ok {
		u = UserStats{UserID: key, UserName: name, UserType: s.UserType, Months: map[string]MonthStats{}}
	}

	end := s.StartedAt
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	dur := s.Duration(end).Seconds()
	charge := s.CostTotal
	if s.ChargePriceTotal != nil {
		charge = *s.ChargePriceTotal
	}

	u.SessionCount++
	u.EnergyKWh += s.EnergyKWh
	u.CostTotal += s.CostTotal
	u.ChargeTotal += charge
	u.DurationS += dur
	if s.MaxPowerW > u.MaxPowerW {
		u.MaxPowerW = s.MaxPowerW
	}
	sess := s
	u.LastSession = &sess

	mk := end.Format("2006-01")
	m := u.Months[mk]
	m.SessionCount++
	m.EnergyKWh += s.EnergyKWh
	m.CostTotal += s.CostTotal
	m.DurationS += dur
	u.Months[mk] = m

	a.users[key] = u
	return true
}

// View returns a deep copy of the current statistics.
func (a *Aggregator) View() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Aggregator) bucket(s model.Session) (key, name string) {
	switch {
	case s.UserID == "":
		return KeyUnknown, "Unknown"
	case s.UserType == model.UserGuest && !a.cfg.PerGuestStats:
		return KeyGuest, "Guest"
	default:
		return s.UserID, s.UserName
	}
}

func (a *Aggregator) remember(id string) {
	if _, ok := a.seen[id]; ok {
		return
	}
	a.seen[id] = struct{}{}
	a.order = append(a.order, id)
	for len(a.order) > a.cfg.DedupeWindow {
		delete(a.seen, a.order[0])
		a.order = a.order[1:]
	}
}

func (a *Aggregator) persist(ctx context.Context) {
	if a.store == nil {
		return
	}
	a.mu.RLock()
	snap := a.snapshotLocked()
	a.mu.RUnlock()
	if err := a.store.Save(ctx, snap); err != nil {
		a.log.Errorf("stats save failed: %v", err)
	}
}

func (a *Aggregator) snapshotLocked() Snapshot {
	snap := Snapshot{
		Users:     make(map[string]UserStats, len(a.users)),
		SeenIDs:   append([]string(nil), a.order...),
		UpdatedAt: time.Now().UTC(),
	}
	for k, u := range a.users {
		months := make(map[string]MonthStats, len(u.Months))
		for mk, m := range u.Months {
			months[mk] = m
		}
		u.Months = months
		if u.LastSession != nil {
			last := *u.LastSession
			u.LastSession = &last
		}
		snap.Users[k] = u
	}
	return snap
}
