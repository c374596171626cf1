package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// CarStatus describes the charger's view of the car connection.
type CarStatus int

const (
	StatusDisconnected CarStatus = iota
	StatusConnectedIdle
	StatusCharging
	StatusChargingComplete
)

// String returns the canonical wire name of the status.
func (s CarStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnectedIdle:
		return "connected-idle"
	case StatusCharging:
		return "charging"
	case StatusChargingComplete:
		return "charging-complete"
	default:
		return "unknown"
	}
}

// ParseCarStatus converts a wire name back into a CarStatus.
func ParseCarStatus(s string) (CarStatus, error) {
	switch s {
	case "disconnected":
		return StatusDisconnected, nil
	case "connected-idle":
		return StatusConnectedIdle, nil
	case "charging":
		return StatusCharging, nil
	case "charging-complete":
		return StatusChargingComplete, nil
	default:
		return StatusDisconnected, fmt.Errorf("unknown car status %q", s)
	}
}

// MarshalJSON encodes the status as its wire name.
func (s CarStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the status from its wire name.
func (s *CarStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseCarStatus(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Connected reports whether a car is attached, regardless of charging activity.
func (s CarStatus) Connected() bool {
	return s != StatusDisconnected
}

// Reading is one normalized snapshot of the charger's observable state.
// Vendor-specific shapes are mapped into this form before they reach the
// engine; the engine never mutates a Reading.
type Reading struct {
	Status CarStatus `json:"status"`
	// SessionEnergyKWh is the charger's cumulative session energy counter.
	// Monotonic within a session; resets to near zero on a new session.
	SessionEnergyKWh float64 `json:"energy_kwh"`
	PowerW           float64 `json:"power_w"`
	// RFID carries the charger's transaction indicator. Nil means the
	// charger exposes no RFID data at all; zero means no card was used.
	RFID *int64 `json:"rfid,omitempty"`
	// TotalEnergyKWh is the charger's lifetime energy counter, when exposed.
	TotalEnergyKWh *float64  `json:"total_energy_kwh,omitempty"`
	Timestamp      time.Time `json:"ts"`
}

// SpotSample is one observation from a dynamic price source.
type SpotSample struct {
	PriceKWh  float64   `json:"price_kwh"`
	Timestamp time.Time `json:"ts"`
}
