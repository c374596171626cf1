package metrics

import (
	coremetrics "github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records session outcomes in Prometheus metrics.
type PromSink struct {
	sessions  *prometheus.CounterVec
	discarded prometheus.Counter
	energy    *prometheus.CounterVec
	cost      *prometheus.CounterVec
	duration  prometheus.Histogram
	state     *prometheus.GaugeVec
}

// NewPromSink registers session metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charging_sessions_total",
		Help: "Completed charging sessions",
	}, []string{"user", "identified"})
	discarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "charging_sessions_discarded_total",
		Help: "Sessions dropped by the micro-session filter",
	})
	energy := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charging_energy_kwh_total",
		Help: "Energy delivered by completed sessions",
	}, []string{"user"})
	cost := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charging_cost_total",
		Help: "Cost accumulated by completed sessions",
	}, []string{"user"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "charging_session_duration_seconds",
		Help:    "Duration of completed sessions",
		Buckets: prometheus.ExponentialBuckets(60, 2, 12),
	})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "charging_engine_state",
		Help: "Current engine state, 1 for the active state",
	}, []string{"state"})

	if err := reg.Register(sessions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			sessions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(discarded); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			discarded = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(energy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			energy = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cost); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cost = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(state); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			state = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		sessions:  sessions,
		discarded: discarded,
		energy:    energy,
		cost:      cost,
		duration:  duration,
		state:     state,
	}, nil
}

// RecordSessionCompleted increments the per-user session counters.
func (s *PromSink) RecordSessionCompleted(sess model.Session) error {
	identified := "true"
	if !sess.Identified() {
		identified = "false"
	}
	s.sessions.WithLabelValues(sess.UserName, identified).Inc()
	s.energy.WithLabelValues(sess.UserName).Add(sess.EnergyKWh)
	s.cost.WithLabelValues(sess.UserName).Add(sess.CostTotal)
	if sess.EndedAt != nil {
		s.duration.Observe(sess.EndedAt.Sub(sess.StartedAt).Seconds())
	}
	return nil
}

// RecordSessionDiscarded counts micro-sessions.
func (s *PromSink) RecordSessionDiscarded(model.Session) error {
	s.discarded.Inc()
	return nil
}

// RecordEngineState marks the active state gauge.
func (s *PromSink) RecordEngineState(state string) error {
	for _, name := range []string{"idle", "tracking", "completing"} {
		v := 0.0
		if name == state {
			v = 1.0
		}
		s.state.WithLabelValues(name).Set(v)
	}
	return nil
}
