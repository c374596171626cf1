package config

import (
	"fmt"

	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/core/rfid"
)

// IdentityConfig holds the static user, vehicle and RFID mapping tables.
type IdentityConfig struct {
	Users    []model.User        `json:"users"`
	Vehicles []model.Vehicle     `json:"vehicles"`
	Mappings []model.RfidMapping `json:"rfid_mappings"`
}

// Validate checks every entry and the references between them.
func (c IdentityConfig) Validate() error {
	userIDs := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if err := u.Validate(); err != nil {
			return err
		}
		if _, dup := userIDs[u.ID]; dup {
			return fmt.Errorf("duplicate user id %q", u.ID)
		}
		userIDs[u.ID] = struct{}{}
	}
	vehicleIDs := make(map[string]struct{}, len(c.Vehicles))
	for _, v := range c.Vehicles {
		if err := v.Validate(); err != nil {
			return err
		}
		if _, dup := vehicleIDs[v.ID]; dup {
			return fmt.Errorf("duplicate vehicle id %q", v.ID)
		}
		vehicleIDs[v.ID] = struct{}{}
	}
	indicators := make(map[int64]struct{}, len(c.Mappings))
	for _, m := range c.Mappings {
		if m.Indicator == 0 {
			return fmt.Errorf("rfid mapping: indicator must be non-zero")
		}
		if _, dup := indicators[m.Indicator]; dup {
			return fmt.Errorf("duplicate rfid indicator %d", m.Indicator)
		}
		indicators[m.Indicator] = struct{}{}
		if _, ok := userIDs[m.UserID]; !ok {
			return fmt.Errorf("rfid mapping %d: unknown user %q", m.Indicator, m.UserID)
		}
		if m.VehicleID != "" {
			if _, ok := vehicleIDs[m.VehicleID]; !ok {
				return fmt.Errorf("rfid mapping %d: unknown vehicle %q", m.Indicator, m.VehicleID)
			}
		}
	}
	return nil
}

// Resolver builds the RFID resolver from the configured tables.
func (c IdentityConfig) Resolver() *rfid.Resolver {
	return rfid.NewResolver(c.Mappings, c.Users, c.Vehicles)
}
