package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/chargetrack/core/metrics"
	"github.com/kilianp07/chargetrack/core/model"
)

func TestInfluxSink_RecordSessionCompleted(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	end := time.Now().UTC()
	start := end.Add(-20 * time.Minute)
	sess := model.Session{
		ID: "s1", ChargerID: "garage", UserName: "Petra", UserType: "regular",
		CostMethod: model.CostStatic,
		StartedAt:  start, EndedAt: &end,
		EnergyKWh: 4.2, CostTotal: 10.5, MaxPowerW: 11000,
	}
	if err := sink.RecordSessionCompleted(sess); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.HasPrefix(body, "charging_session,") {
		t.Fatalf("unexpected measurement: %s", body)
	}
	for _, want := range []string{"charger_id=garage", "user=Petra", "energy_kwh=4.2", "cost_total=10.5"} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol missing %q: %s", want, body)
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", sink)
	}
}
