// Package soc estimates the state-of-charge percentage added by a session.
package soc

import "github.com/kilianp07/chargetrack/core/model"

// DefaultEfficiency is assumed when a vehicle has no configured charging
// efficiency. Accounts for AC conversion and thermal losses.
const DefaultEfficiency = 0.90

// Estimate returns the SoC percentage added for the delivered energy:
// (energy * efficiency) / usable capacity * 100, clamped to [0, 100].
// The second return is false when no vehicle is resolved or its capacity is
// unusable; SoC is then unavailable, not zero.
func Estimate(energyKWh float64, vehicle *model.Vehicle) (float64, bool) {
	if vehicle == nil {
		return 0, false
	}
	capacity := vehicle.UsableCapacity()
	if capacity <= 0 {
		return 0, false
	}
	eff := vehicle.ChargingEfficiency
	if eff <= 0 {
		eff = DefaultEfficiency
	}
	pct := energyKWh * eff / capacity * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
