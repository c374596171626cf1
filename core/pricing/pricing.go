// Package pricing computes charging session cost from delivered energy.
//
// Static mode multiplies energy by a fixed rate. Spot mode integrates
// incrementally: each energy delta is priced at the spot rate in effect when
// it was delivered, so the total is the sum over rate-constant sub-intervals
// rather than final energy times the latest rate.
package pricing

import (
	"fmt"

	"github.com/kilianp07/chargetrack/core/model"
)

// Config defines the pricing parameters for one charger.
type Config struct {
	// Mode is "static" or "spot".
	Mode string `json:"mode"`
	// StaticPriceKWh is the fixed rate in static mode.
	StaticPriceKWh float64 `json:"static_price_kwh"`
	// SpotFallbackPriceKWh is applied while no spot sample has been seen.
	SpotFallbackPriceKWh float64 `json:"spot_fallback_price_kwh"`
	// SpotAdditionalCostKWh is a grid/transfer surcharge added to the raw
	// spot rate before VAT.
	SpotAdditionalCostKWh float64 `json:"spot_additional_cost_kwh"`
	// SpotVATMultiplier scales the surcharged spot rate, e.g. 1.25.
	SpotVATMultiplier float64 `json:"spot_vat_multiplier"`
}

// SetDefaults applies the stock defaults.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = string(model.CostStatic)
	}
	if c.StaticPriceKWh == 0 {
		c.StaticPriceKWh = 2.50
	}
	if c.SpotFallbackPriceKWh == 0 {
		c.SpotFallbackPriceKWh = 2.50
	}
	if c.SpotVATMultiplier == 0 {
		c.SpotVATMultiplier = 1.25
	}
}

// Validate checks the mode.
func (c Config) Validate() error {
	if c.Mode != string(model.CostStatic) && c.Mode != string(model.CostSpot) {
		return fmt.Errorf("unknown pricing mode %q", c.Mode)
	}
	return nil
}

// Calculator turns energy into cost according to one Config. Stateless;
// spot integration state lives in SpotTracker.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a calculator for the given configuration.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Method returns the cost method sessions priced by this calculator carry.
func (c *Calculator) Method() model.CostMethod {
	return model.CostMethod(c.cfg.Mode)
}

// Static returns energy times the fixed rate.
func (c *Calculator) Static(energyKWh float64) float64 {
	return energyKWh * c.cfg.StaticPriceKWh
}

// EffectiveSpotRate converts a raw market price into the applied rate:
// (raw + additional cost) * VAT multiplier.
func (c *Calculator) EffectiveSpotRate(rawPriceKWh float64) float64 {
	return (rawPriceKWh + c.cfg.SpotAdditionalCostKWh) * c.cfg.SpotVATMultiplier
}

// NewSpotTracker starts a per-session spot integration at the fallback rate.
func (c *Calculator) NewSpotTracker() *SpotTracker {
	return &SpotTracker{calc: c, rate: c.EffectiveSpotRate(c.cfg.SpotFallbackPriceKWh)}
}

// ResumeSpotTracker continues an integration from a previously accumulated
// cost, used when a session is restored from a recovery snapshot.
func (c *Calculator) ResumeSpotTracker(cost float64) *SpotTracker {
	t := c.NewSpotTracker()
	t.cost = cost
	return t
}

// SpotTracker accumulates spot-mode cost over one session. Each Add prices
// an energy delta at the rate in effect when it arrived.
type SpotTracker struct {
	calc *Calculator
	rate float64
	cost float64
}

// SetRate records a new raw spot sample; subsequent deltas use it.
func (t *SpotTracker) SetRate(rawPriceKWh float64) {
	t.rate = t.calc.EffectiveSpotRate(rawPriceKWh)
}

// Add integrates an energy delta at the current effective rate. Negative
// deltas are ignored; the engine filters those out anyway.
func (t *SpotTracker) Add(deltaKWh float64) {
	if deltaKWh <= 0 {
		return
	}
	t.cost += deltaKWh * t.rate
}

// Total returns the integrated cost so far.
func (t *SpotTracker) Total() float64 { return t.cost }

// GuestCharge computes what a guest pays for the session, applied after the
// base cost: a fixed per-kWh rate or a markup factor on the base cost. The
// second return is false when no override applies.
func GuestCharge(gp *model.GuestPricing, energyKWh, baseCost float64) (float64, bool) {
	if gp == nil {
		return 0, false
	}
	switch gp.Method {
	case "fixed":
		return energyKWh * gp.PriceKWh, true
	case "markup":
		return baseCost * gp.MarkupFactor, true
	}
	return 0, false
}
