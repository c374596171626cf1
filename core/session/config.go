package session

import "fmt"

// Config defines the engine tunables for one charger instance.
type Config struct {
	ChargerID   string `json:"charger_id"`
	ChargerName string `json:"charger_name"`
	// MinDurationS and MinEnergyKWh classify micro-sessions; sessions below
	// either threshold are discarded from statistics.
	MinDurationS int     `json:"min_session_duration_s"`
	MinEnergyKWh float64 `json:"min_session_energy_kwh"`
	// SettleWindowS is the grace period after the charger reports complete,
	// absorbing trailing energy reports before finalization.
	SettleWindowS int `json:"settle_window_s"`
	// SettleReadings finalizes early after this many quiet readings inside
	// the settle window.
	SettleReadings int `json:"settle_readings"`
	// ResetToleranceKWh separates stale out-of-order readings (ignored)
	// from genuine counter resets (old session finalized, new one started).
	ResetToleranceKWh float64 `json:"reset_tolerance_kwh"`
	// CrossCheckToleranceKWh flags sessions whose accumulated energy
	// deviates from the charger's lifetime-counter delta by more than this.
	CrossCheckToleranceKWh float64 `json:"cross_check_tolerance_kwh"`
	// SnapshotIntervalS is the recovery-snapshot cadence while a session
	// is active.
	SnapshotIntervalS int `json:"snapshot_interval_s"`
}

// SetDefaults applies the stock defaults.
func (c *Config) SetDefaults() {
	if c.ChargerName == "" {
		c.ChargerName = "EV Charger"
	}
	if c.MinDurationS == 0 {
		c.MinDurationS = 60
	}
	if c.MinEnergyKWh == 0 {
		c.MinEnergyKWh = 0.05
	}
	if c.SettleWindowS == 0 {
		c.SettleWindowS = 30
	}
	if c.SettleReadings == 0 {
		c.SettleReadings = 3
	}
	if c.ResetToleranceKWh == 0 {
		c.ResetToleranceKWh = 0.1
	}
	if c.CrossCheckToleranceKWh == 0 {
		c.CrossCheckToleranceKWh = 0.3
	}
	if c.SnapshotIntervalS == 0 {
		c.SnapshotIntervalS = 300
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.ChargerID == "" {
		return fmt.Errorf("charger_id is required")
	}
	if c.SettleReadings < 1 {
		return fmt.Errorf("settle_readings must be at least 1")
	}
	return nil
}
