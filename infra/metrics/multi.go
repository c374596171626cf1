package metrics

import (
	coremetrics "github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/model"
)

// MultiSink fans session records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.SessionSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.SessionSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSessionCompleted forwards the session to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordSessionCompleted(s model.Session) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordSessionCompleted(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordSessionDiscarded forwards the discard to all sinks.
func (m *MultiSink) RecordSessionDiscarded(s model.Session) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordSessionDiscarded(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordEngineState forwards state changes to sinks that track them.
func (m *MultiSink) RecordEngineState(state string) error {
	for _, sink := range m.Sinks {
		if rec, ok := sink.(coremetrics.StateRecorder); ok {
			if err := rec.RecordEngineState(state); err != nil {
				return err
			}
		}
	}
	return nil
}
