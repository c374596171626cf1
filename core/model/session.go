package model

import (
	"time"

	"github.com/google/uuid"
)

// CostMethod identifies how a session's cost was computed.
type CostMethod string

const (
	CostStatic CostMethod = "static"
	CostSpot   CostMethod = "spot"
)

// UnknownReason explains why a session could not be attributed to a user.
type UnknownReason string

const (
	// ReasonNoRFIDSignal: the charger reports RFID data but no card was
	// presented for this session (indicator value zero).
	ReasonNoRFIDSignal UnknownReason = "no_rfid_signal"
	// ReasonNoMapping: a card was presented but no mapping exists for it.
	ReasonNoMapping UnknownReason = "no_mapping_for_card"
	// ReasonNoRFIDSupport: the charger exposes no RFID indicator at all.
	ReasonNoRFIDSupport UnknownReason = "charger_has_no_rfid_support"
)

// Session is one continuous charging event from connection to completion.
//
// Identity, vehicle and pricing data are snapshotted at session start and
// never re-resolved; energy, power, cost and SoC evolve while tracking. Once
// finalized the session is immutable and handed downstream exactly once.
type Session struct {
	ID          string `json:"id"`
	ChargerID   string `json:"charger_id"`
	ChargerName string `json:"charger_name,omitempty"`

	UserID        string        `json:"user_id,omitempty"`
	UserName      string        `json:"user_name"`
	UserType      string        `json:"user_type"`
	VehicleID     string        `json:"vehicle_id,omitempty"`
	VehicleName   string        `json:"vehicle_name,omitempty"`
	UnknownReason UnknownReason `json:"unknown_reason,omitempty"`
	// RFID is the indicator value captured at session start, nil when the
	// charger exposes none. Kept for recovery continuity checks.
	RFID *int64 `json:"rfid,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// EnergyStartKWh is the charger's session counter value at start;
	// EnergyKWh is the delivered energy relative to that baseline.
	EnergyStartKWh float64 `json:"energy_start_kwh"`
	EnergyKWh      float64 `json:"energy_kwh"`
	MaxPowerW      float64 `json:"max_power_w"`
	AvgPowerW      float64 `json:"avg_power_w"`

	CostTotal         float64    `json:"cost_total"`
	CostMethod        CostMethod `json:"cost_method"`
	ChargePriceTotal  *float64   `json:"charge_price_total,omitempty"`
	ChargePriceMethod string     `json:"charge_price_method,omitempty"`

	SoCAddedPct *float64 `json:"estimated_soc_added_pct,omitempty"`

	// Cross-validation against the charger's lifetime counter. The flag is
	// diagnostic only; EnergyKWh stays authoritative for billing.
	MeterStartKWh  *float64 `json:"meter_start_kwh,omitempty"`
	MeterEndKWh    *float64 `json:"meter_end_kwh,omitempty"`
	EnergyMismatch bool     `json:"energy_mismatch,omitempty"`
}

// NewSession creates a session with a fresh id.
func NewSession(chargerID, chargerName string, startedAt time.Time) Session {
	return Session{
		ID:          uuid.NewString(),
		ChargerID:   chargerID,
		ChargerName: chargerName,
		UserName:    "Unknown",
		UserType:    "unknown",
		StartedAt:   startedAt,
		CostMethod:  CostStatic,
	}
}

// Identified reports whether the session was attributed to a known user.
func (s Session) Identified() bool { return s.UnknownReason == "" }

// Active reports whether the session has been finalized yet.
func (s Session) Active() bool { return s.EndedAt == nil }

// Duration returns the session length, using now for active sessions.
func (s Session) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
