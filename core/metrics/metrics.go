// Package metrics defines the sink interfaces session outcomes are
// reported to. Implementations live under infra/metrics.
package metrics

import "github.com/kilianp07/chargetrack/core/model"

// Config selects and parameterizes the enabled sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SessionSink records session outcomes.
type SessionSink interface {
	RecordSessionCompleted(s model.Session) error
	RecordSessionDiscarded(s model.Session) error
}

// StateRecorder is implemented by sinks that track the engine state.
type StateRecorder interface {
	RecordEngineState(state string) error
}

// NopSink ignores all records.
type NopSink struct{}

func (NopSink) RecordSessionCompleted(model.Session) error { return nil }
func (NopSink) RecordSessionDiscarded(model.Session) error { return nil }
func (NopSink) RecordEngineState(string) error             { return nil }
