// Package rfid resolves charger RFID indicator values to configured users
// and vehicles. Lookups are direct keyed matches against static mapping
// tables; there is no fuzzy matching and no I/O.
package rfid

import (
	"github.com/kilianp07/chargetrack/core/model"
)

// Resolution is the tagged outcome of resolving an indicator value:
// either an identified (user, vehicle) pair or an unknown reason code.
type Resolution struct {
	User         *model.User
	Vehicle      *model.Vehicle
	Indicator    *int64
	Reason       model.UnknownReason // empty when identified
	GuestPricing *model.GuestPricing
}

// Identified reports whether the resolution carries a known user.
func (r Resolution) Identified() bool { return r.Reason == "" }

// Resolver maps RFID indicator values to users and vehicles.
type Resolver struct {
	mappings map[int64]model.RfidMapping
	users    map[string]model.User
	vehicles map[string]model.Vehicle
}

// NewResolver builds a resolver from configuration snapshots. The tables are
// copied; later mutation of the inputs does not affect the resolver.
func NewResolver(mappings []model.RfidMapping, users []model.User, vehicles []model.Vehicle) *Resolver {
	r := &Resolver{
		mappings: make(map[int64]model.RfidMapping, len(mappings)),
		users:    make(map[string]model.User, len(users)),
		vehicles: make(map[string]model.Vehicle, len(vehicles)),
	}
	for _, m := range mappings {
		r.mappings[m.Indicator] = m
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	for _, v := range vehicles {
		r.vehicles[v.ID] = v
	}
	return r
}

// Resolve maps the indicator captured at session start to a user and an
// optional vehicle.
//
// A nil indicator means the charger exposes no RFID data; zero means no card
// was presented. Unmapped, inactive or dangling mappings all resolve as
// "no mapping for card". The engine caches this result on the session and
// never re-resolves mid-session.
func (r *Resolver) Resolve(indicator *int64) Resolution {
	if indicator == nil {
		return Resolution{Reason: model.ReasonNoRFIDSupport}
	}
	res := Resolution{Indicator: indicator}
	if *indicator == 0 {
		res.Reason = model.ReasonNoRFIDSignal
		return res
	}
	m, ok := r.mappings[*indicator]
	if !ok || !m.Active {
		res.Reason = model.ReasonNoMapping
		return res
	}
	u, ok := r.users[m.UserID]
	if !ok || !u.Active {
		res.Reason = model.ReasonNoMapping
		return res
	}
	res.User = &u
	if u.Type == model.UserGuest {
		res.GuestPricing = u.GuestPricing
	}
	if m.VehicleID != "" {
		if v, ok := r.vehicles[m.VehicleID]; ok {
			res.Vehicle = &v
		}
	}
	return res
}
