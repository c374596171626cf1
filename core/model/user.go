package model

import "fmt"

// User types as stored in configuration.
const (
	UserRegular = "regular"
	UserGuest   = "guest"
)

// GuestPricing overrides the charger-wide price for a guest user.
// Exactly one of PriceKWh (method "fixed") or MarkupFactor (method "markup")
// applies depending on Method.
type GuestPricing struct {
	Method       string  `json:"method"`
	PriceKWh     float64 `json:"price_kwh,omitempty"`
	MarkupFactor float64 `json:"markup_factor,omitempty"`
}

// Validate checks the method and its required field.
func (g GuestPricing) Validate() error {
	switch g.Method {
	case "fixed":
		if g.PriceKWh <= 0 {
			return fmt.Errorf("guest pricing: fixed method requires price_kwh")
		}
	case "markup":
		if g.MarkupFactor <= 0 {
			return fmt.Errorf("guest pricing: markup method requires markup_factor")
		}
	default:
		return fmt.Errorf("guest pricing: unknown method %q", g.Method)
	}
	return nil
}

// User is a person allowed to charge, regular or guest.
type User struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Active       bool          `json:"active"`
	GuestPricing *GuestPricing `json:"guest_pricing,omitempty"`
}

// Validate checks user fields, including guest pricing when present.
func (u User) Validate() error {
	if u.ID == "" || u.Name == "" {
		return fmt.Errorf("user: id and name are required")
	}
	if u.Type != UserRegular && u.Type != UserGuest {
		return fmt.Errorf("user %s: unknown type %q", u.ID, u.Type)
	}
	if u.GuestPricing != nil {
		if err := u.GuestPricing.Validate(); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	return nil
}

// Vehicle holds the battery parameters used for SoC estimation.
type Vehicle struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	BatteryKWh         float64 `json:"battery_kwh"`
	UsableBatteryKWh   float64 `json:"usable_battery_kwh,omitempty"`
	ChargingEfficiency float64 `json:"charging_efficiency,omitempty"`
}

// UsableCapacity returns the usable battery size, falling back to the
// nominal capacity when not configured.
func (v Vehicle) UsableCapacity() float64 {
	if v.UsableBatteryKWh > 0 {
		return v.UsableBatteryKWh
	}
	return v.BatteryKWh
}

// Validate checks vehicle fields.
func (v Vehicle) Validate() error {
	if v.ID == "" || v.Name == "" {
		return fmt.Errorf("vehicle: id and name are required")
	}
	if v.BatteryKWh <= 0 {
		return fmt.Errorf("vehicle %s: battery capacity must be positive", v.ID)
	}
	return nil
}

// RfidMapping associates an observed RFID indicator value with a user and an
// optional vehicle. Supplied by configuration, read-only to the engine.
type RfidMapping struct {
	Indicator int64  `json:"indicator"`
	UserID    string `json:"user_id"`
	VehicleID string `json:"vehicle_id,omitempty"`
	Active    bool   `json:"active"`
}
