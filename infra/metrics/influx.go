package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/infra/logger"
)

// InfluxSink writes one point per completed session using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.SessionSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSessionCompleted writes the session as one point.
func (s *InfluxSink) RecordSessionCompleted(sess model.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_session").
		AddTag("charger_id", sess.ChargerID).
		AddTag("user", sess.UserName).
		AddTag("user_type", sess.UserType).
		AddTag("cost_method", string(sess.CostMethod)).
		AddField("energy_kwh", round3(sess.EnergyKWh)).
		AddField("cost_total", round3(sess.CostTotal)).
		AddField("max_power_w", round3(sess.MaxPowerW)).
		AddField("avg_power_w", round3(sess.AvgPowerW)).
		AddField("energy_mismatch", sess.EnergyMismatch)
	if sess.SoCAddedPct != nil {
		p.AddField("soc_added_pct", round3(*sess.SoCAddedPct))
	}
	if sess.ChargePriceTotal != nil {
		p.AddField("charge_price_total", round3(*sess.ChargePriceTotal))
	}
	end := sess.StartedAt
	if sess.EndedAt != nil {
		end = *sess.EndedAt
		p.AddField("duration_s", end.Sub(sess.StartedAt).Seconds())
	}
	p.SetTime(end)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSessionDiscarded writes a marker point for a dropped micro-session.
func (s *InfluxSink) RecordSessionDiscarded(sess model.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charging_session_discarded").
		AddTag("charger_id", sess.ChargerID).
		AddField("energy_kwh", round3(sess.EnergyKWh)).
		SetTime(sess.StartedAt)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
