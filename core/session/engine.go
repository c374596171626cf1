// Package session implements the charging-session state machine. One Engine
// exists per charger instance; it consumes normalized Readings strictly in
// arrival order, detects session boundaries, attributes sessions via RFID,
// accumulates energy and cost, and emits completed sessions exactly once.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/chargetrack/core/logger"
	"github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/core/pricing"
	"github.com/kilianp07/chargetrack/core/recovery"
	"github.com/kilianp07/chargetrack/core/rfid"
	"github.com/kilianp07/chargetrack/core/soc"
	"github.com/kilianp07/chargetrack/internal/eventbus"
)

// State is the engine's position in the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateTracking
	StateCompleting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	case StateCompleting:
		return "completing"
	default:
		return "unknown"
	}
}

// View is a read-only snapshot of the engine for the display path.
type View struct {
	State   string         `json:"state"`
	Session *model.Session `json:"session,omitempty"`
}

// Engine owns the single in-flight session for one charger.
//
// All state transitions happen on the goroutine running Run (or calling
// ProcessReading in offline use); a mutex only guards the fields exposed to
// View from other goroutines.
type Engine struct {
	cfg       Config
	resolver  *rfid.Resolver
	pricing   *pricing.Calculator
	snapshots recovery.Store
	events    *eventbus.Bus[Event]
	sink      metrics.SessionSink
	log       logger.Logger

	mu         sync.RWMutex
	state      State
	sess       *model.Session
	resolution rfid.Resolution
	lastStatus model.CarStatus
	lastEnergy float64
	lastPower  float64
	spot       *pricing.SpotTracker
	spotRate   *float64
	xcheck     CrossCheck

	settleQuiet int
	settle      *time.Timer

	// snapOps serializes snapshot I/O so a Save queued just before
	// finalization can never land after the Clear that follows it.
	snapOps chan func()

	// pending holds a snapshot loaded at startup, consumed by the first
	// Reading's continuity check.
	pending *recovery.Snapshot
}

// New creates an engine for one charger instance. sink may be nil.
func New(cfg Config, resolver *rfid.Resolver, calc *pricing.Calculator, snaps recovery.Store,
	events *eventbus.Bus[Event], sink metrics.SessionSink, log logger.Logger) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	e := &Engine{
		cfg:        cfg,
		resolver:   resolver,
		pricing:    calc,
		snapshots:  snaps,
		events:     events,
		sink:       sink,
		log:        log,
		lastStatus: model.StatusDisconnected,
		snapOps:    make(chan func(), 8),
	}
	go func() {
		for op := range e.snapOps {
			op()
		}
	}()
	return e
}

// Restore loads the snapshot slot, if any. The continuity check is deferred
// until the first Reading arrives. Load errors degrade recovery but never
// block startup.
func (e *Engine) Restore(ctx context.Context) {
	snap, err := e.snapshots.Load(ctx, e.cfg.ChargerID)
	if err != nil {
		e.log.Errorf("snapshot load failed: %v", err)
		return
	}
	if snap == nil || !snap.Session.Active() {
		return
	}
	e.pending = snap
}

// Run consumes readings and spot samples until the context is cancelled or
// the readings channel closes. An in-flight settle window is abandoned on
// shutdown; the snapshot slot picks the session back up on next startup.
func (e *Engine) Run(ctx context.Context, readings <-chan model.Reading, spots <-chan model.SpotSample) error {
	snapTick := time.NewTicker(time.Duration(e.cfg.SnapshotIntervalS) * time.Second)
	defer snapTick.Stop()

	e.settle = time.NewTimer(time.Hour)
	e.settle.Stop()
	defer e.settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-readings:
			if !ok {
				return nil
			}
			e.ProcessReading(r)
		case s, ok := <-spots:
			if !ok {
				spots = nil
				continue
			}
			e.ProcessSpotSample(s)
		case <-snapTick.C:
			e.persistSnapshot()
		case <-e.settle.C:
			e.onSettleExpired()
		}
	}
}

// ProcessReading applies one reading to the state machine.
func (e *Engine) ProcessReading(r model.Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending != nil {
		e.tryRecover(r)
	}

	switch e.state {
	case StateIdle:
		e.handleIdle(r)
	case StateTracking:
		e.handleTracking(r)
	case StateCompleting:
		e.handleCompleting(r)
	}
	e.lastStatus = r.Status
}

// ProcessSpotSample records the latest market rate. The rate is retained
// across idle periods so a session starting between publications begins at
// the rate in effect, not the fallback.
func (e *Engine) ProcessSpotSample(s model.SpotSample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate := s.PriceKWh
	e.spotRate = &rate
	if e.spot != nil {
		e.spot.SetRate(s.PriceKWh)
	}
}

// View returns the current engine state and a copy of the active session.
func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := View{State: e.state.String()}
	if e.sess != nil {
		s := *e.sess
		v.Session = &s
	}
	return v
}

func (e *Engine) handleIdle(r model.Reading) {
	if !r.Status.Connected() || r.Status == model.StatusChargingComplete {
		return
	}
	freshCounter := r.SessionEnergyKWh <= e.cfg.ResetToleranceKWh
	resumedCharging := e.lastStatus == model.StatusDisconnected && r.Status == model.StatusCharging
	if freshCounter || resumedCharging {
		e.startSession(r)
	}
}

func (e *Engine) startSession(r model.Reading) {
	sess := model.NewSession(e.cfg.ChargerID, e.cfg.ChargerName, r.Timestamp)
	res := e.resolver.Resolve(r.RFID)
	if res.Identified() {
		sess.UserID = res.User.ID
		sess.UserName = res.User.Name
		sess.UserType = res.User.Type
		if res.Vehicle != nil {
			sess.VehicleID = res.Vehicle.ID
			sess.VehicleName = res.Vehicle.Name
		}
	} else {
		sess.UnknownReason = res.Reason
	}
	sess.RFID = r.RFID
	sess.EnergyStartKWh = r.SessionEnergyKWh
	sess.MaxPowerW = r.PowerW
	sess.CostMethod = e.pricing.Method()
	e.xcheck.Start(r.TotalEnergyKWh)
	if start, _ := e.xcheck.Bounds(); start != nil {
		sess.MeterStartKWh = start
	}

	e.sess = &sess
	e.resolution = res
	e.lastEnergy = r.SessionEnergyKWh
	e.lastPower = r.PowerW
	e.spot = nil
	if sess.CostMethod == model.CostSpot {
		e.spot = e.pricing.NewSpotTracker()
		if e.spotRate != nil {
			e.spot.SetRate(*e.spotRate)
		}
	}
	e.setState(StateTracking)

	if !res.Identified() {
		e.log.Infof("session %s started unattributed: reason=%s", sess.ID, sess.UnknownReason)
	} else {
		e.log.Infof("session %s started: user=%s vehicle=%s", sess.ID, sess.UserName, sess.VehicleName)
	}
	e.events.Publish(Event{Kind: EventStarted, Session: sess})
}

func (e *Engine) handleTracking(r model.Reading) {
	if r.Status == model.StatusChargingComplete || r.Status == model.StatusDisconnected {
		e.enterCompleting(r)
		return
	}
	e.updateTracking(r)
}

func (e *Engine) updateTracking(r model.Reading) {
	if r.SessionEnergyKWh+e.cfg.ResetToleranceKWh < e.lastEnergy {
		// Counter reset mid-session: the old session ended unseen. Finalize
		// it, then start a new one at the reset baseline.
		e.log.Warnf("energy reset detected (%.3f -> %.3f kWh), splitting session",
			e.lastEnergy, r.SessionEnergyKWh)
		e.finalize(r.Timestamp)
		e.startSession(r)
		return
	}

	if r.SessionEnergyKWh >= e.lastEnergy {
		delta := r.SessionEnergyKWh - e.lastEnergy
		e.lastEnergy = r.SessionEnergyKWh
		e.sess.EnergyKWh = e.lastEnergy - e.sess.EnergyStartKWh
		if e.spot != nil {
			e.spot.Add(delta)
			e.sess.CostTotal = e.spot.Total()
		} else {
			e.sess.CostTotal = e.pricing.Static(e.sess.EnergyKWh)
		}
	}
	// else: below the last accepted value but within tolerance, a stale or
	// out-of-order report, ignored.

	if r.PowerW > e.sess.MaxPowerW {
		e.sess.MaxPowerW = r.PowerW
	}
	e.lastPower = r.PowerW

	if charge, ok := pricing.GuestCharge(e.resolution.GuestPricing, e.sess.EnergyKWh, e.sess.CostTotal); ok {
		e.sess.ChargePriceTotal = &charge
		e.sess.ChargePriceMethod = e.resolution.GuestPricing.Method
	}
	if pct, ok := soc.Estimate(e.sess.EnergyKWh, e.resolution.Vehicle); ok {
		e.sess.SoCAddedPct = &pct
	}
	e.xcheck.Observe(r.TotalEnergyKWh)
}

func (e *Engine) enterCompleting(r model.Reading) {
	e.setState(StateCompleting)
	e.settleQuiet = 0
	if e.settle != nil {
		e.settle.Reset(time.Duration(e.cfg.SettleWindowS) * time.Second)
	}
	e.log.Debugf("session %s completing: status=%s, settling", e.sess.ID, r.Status)
}

func (e *Engine) handleCompleting(r model.Reading) {
	if r.Status == model.StatusCharging && (r.SessionEnergyKWh > e.lastEnergy || r.PowerW > e.lastPower) {
		// Charger flapped: the session continues.
		if e.settle != nil {
			e.settle.Stop()
		}
		e.setState(StateTracking)
		e.log.Debugf("session %s resumed during settle window", e.sess.ID)
		e.updateTracking(r)
		return
	}

	if !r.Status.Connected() && r.SessionEnergyKWh+e.cfg.ResetToleranceKWh < e.lastEnergy {
		// The charger cleared its session counter on unplug. Close out what
		// was tracked; a fresh counter on a disconnected car is not a session.
		e.finalize(r.Timestamp)
		return
	}

	// Absorb trailing energy reports that arrive after the status flipped.
	e.updateTracking(r)
	if e.state != StateCompleting {
		// updateTracking split the session on an energy reset.
		return
	}
	e.settleQuiet++
	if e.settleQuiet >= e.cfg.SettleReadings {
		e.finalize(r.Timestamp)
	}
}

func (e *Engine) onSettleExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCompleting {
		return
	}
	e.finalize(time.Now().UTC())
}

// finalize freezes the session, applies the micro-session filter and either
// emits the completed session or drops it. Always returns the engine to idle.
func (e *Engine) finalize(now time.Time) {
	if e.settle != nil {
		e.settle.Stop()
	}
	sess := e.sess
	end := now
	sess.EndedAt = &end
	dur := sess.Duration(now)
	if sec := dur.Seconds(); sec > 0 {
		sess.AvgPowerW = sess.EnergyKWh * 3_600_000 / sec
	}

	micro := dur < time.Duration(e.cfg.MinDurationS)*time.Second || sess.EnergyKWh < e.cfg.MinEnergyKWh
	if micro {
		e.log.Infof("Discarded micro-session %s: duration=%s energy=%.3f kWh", sess.ID, dur, sess.EnergyKWh)
		if err := e.sink.RecordSessionDiscarded(*sess); err != nil {
			e.log.Errorf("metrics sink: %v", err)
		}
	} else {
		if _, meterEnd := e.xcheck.Bounds(); meterEnd != nil {
			sess.MeterEndKWh = meterEnd
		}
		if e.xcheck.Exceeds(sess.EnergyKWh, e.cfg.CrossCheckToleranceKWh) {
			sess.EnergyMismatch = true
			e.log.Warnf("session %s energy mismatch: session=%.3f kWh meter delta differs beyond %.3f kWh",
				sess.ID, sess.EnergyKWh, e.cfg.CrossCheckToleranceKWh)
		}
		e.log.Infof("session %s completed: user=%s energy=%.3f kWh cost=%.2f duration=%s",
			sess.ID, sess.UserName, sess.EnergyKWh, sess.CostTotal, dur)
		e.events.Publish(Event{Kind: EventCompleted, Session: *sess})
		if err := e.sink.RecordSessionCompleted(*sess); err != nil {
			e.log.Errorf("metrics sink: %v", err)
		}
	}

	e.clearSnapshot()
	e.sess = nil
	e.resolution = rfid.Resolution{}
	e.spot = nil
	e.lastEnergy = 0
	e.lastPower = 0
	e.settleQuiet = 0
	e.setState(StateIdle)
}

// tryRecover runs the startup continuity check against the first reading.
func (e *Engine) tryRecover(r model.Reading) {
	snap := e.pending
	e.pending = nil

	active := r.Status == model.StatusCharging || r.Status == model.StatusChargingComplete
	if !active || !rfidEqual(snap.RFID, r.RFID) {
		e.log.Warnf("Session continuity mismatch: discarding snapshot of session %s", snap.Session.ID)
		e.clearSnapshot()
		return
	}

	sess := snap.Session
	e.sess = &sess
	e.resolution = e.resolver.Resolve(snap.RFID)
	e.lastEnergy = sess.EnergyStartKWh + sess.EnergyKWh
	e.lastPower = 0
	e.xcheck.Start(sess.MeterStartKWh)
	if sess.CostMethod == model.CostSpot {
		e.spot = e.pricing.ResumeSpotTracker(sess.CostTotal)
		if e.spotRate != nil {
			e.spot.SetRate(*e.spotRate)
		}
	}
	e.setState(StateTracking)
	e.log.Infof("Recovered session %s: user=%s energy=%.3f kWh", sess.ID, sess.UserName, sess.EnergyKWh)
}

// persistSnapshot copies the active session and queues the write off the
// ingestion path. Write failures degrade recovery, not live tracking.
func (e *Engine) persistSnapshot() {
	e.mu.RLock()
	if e.state == StateIdle || e.sess == nil {
		e.mu.RUnlock()
		return
	}
	snap := recovery.Snapshot{
		ChargerID: e.cfg.ChargerID,
		Session:   *e.sess,
		RFID:      e.sess.RFID,
		SavedAt:   time.Now().UTC(),
	}
	e.mu.RUnlock()

	e.snapOps <- func() {
		if err := e.snapshots.Save(context.Background(), snap); err != nil {
			e.log.Errorf("snapshot save failed: %v", err)
		}
	}
}

func (e *Engine) clearSnapshot() {
	id := e.cfg.ChargerID
	e.snapOps <- func() {
		if err := e.snapshots.Clear(context.Background(), id); err != nil {
			e.log.Errorf("snapshot clear failed: %v", err)
		}
	}
}

func (e *Engine) setState(s State) {
	e.state = s
	if rec, ok := e.sink.(metrics.StateRecorder); ok {
		if err := rec.RecordEngineState(s.String()); err != nil {
			e.log.Errorf("metrics sink: %v", err)
		}
	}
}

func rfidEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
