package session

import "math"

// CrossCheck compares engine-accumulated session energy against the
// charger's independent lifetime energy counter. Purely diagnostic: a
// deviation flags the session but never alters the accumulated energy,
// which stays authoritative for billing.
type CrossCheck struct {
	start *float64
	last  *float64
}

// Start records the counter value at session start, when present.
func (c *CrossCheck) Start(totalKWh *float64) {
	c.start = nil
	c.last = nil
	c.Observe(totalKWh)
	if totalKWh != nil {
		v := *totalKWh
		c.start = &v
	}
}

// Observe records the latest counter value, when present.
func (c *CrossCheck) Observe(totalKWh *float64) {
	if totalKWh == nil {
		return
	}
	v := *totalKWh
	c.last = fptr(v)
}

// Bounds returns the counter values seen at start and end of the session.
// Either may be nil when the charger exposed no counter at that point.
func (c *CrossCheck) Bounds() (start, end *float64) {
	return c.start, c.last
}

// Exceeds reports whether the counter delta deviates from the session's
// accumulated energy by more than tolerance. Validation is silently skipped
// (returns false) when the counter was missing at start or end.
func (c *CrossCheck) Exceeds(sessionKWh, toleranceKWh float64) bool {
	if c.start == nil || c.last == nil {
		return false
	}
	delta := *c.last - *c.start
	return math.Abs(delta-sessionKWh) > toleranceKWh
}

func fptr(v float64) *float64 { return &v }
