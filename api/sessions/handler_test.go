package sessions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/chargetrack/core/logger"
	"github.com/kilianp07/chargetrack/core/model"
	"github.com/kilianp07/chargetrack/core/session"
	"github.com/kilianp07/chargetrack/core/sessionlog"
	"github.com/kilianp07/chargetrack/core/stats"
)

type fakeViewer struct{ view session.View }

func (f fakeViewer) View() session.View { return f.view }

func TestLiveHandler(t *testing.T) {
	sess := model.NewSession("garage", "Garage Charger", time.Now().UTC())
	sess.UserName = "Petra"
	h := NewLiveHandler(fakeViewer{view: session.View{State: "tracking", Session: &sess}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/session", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out session.View
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.State != "tracking" || out.Session == nil || out.Session.UserName != "Petra" {
		t.Fatalf("unexpected view %#v", out)
	}
}

func TestLiveHandler_MethodNotAllowed(t *testing.T) {
	h := NewLiveHandler(fakeViewer{view: session.View{State: "idle"}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/session", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rr.Code)
	}
}

func TestStatsHandler(t *testing.T) {
	agg := stats.New(stats.Config{}, nil, logger.Nop{})
	end := time.Now().UTC()
	start := end.Add(-time.Hour)
	agg.Record(model.Session{
		ID: "s1", UserID: "u1", UserName: "Petra", UserType: model.UserRegular,
		StartedAt: start, EndedAt: &end, EnergyKWh: 4.2, CostTotal: 10.5,
	})

	rr := httptest.NewRecorder()
	NewStatsHandler(agg).ServeHTTP(rr, httptest.NewRequest("GET", "/api/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out stats.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Users["u1"].SessionCount != 1 {
		t.Fatalf("unexpected stats %#v", out)
	}
}

func TestHistoryHandler(t *testing.T) {
	store, err := sessionlog.NewJSONLStore(t.TempDir() + "/sessions.jsonl")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"s1", "s2"} {
		end := now.Add(time.Duration(i)*time.Hour + 30*time.Minute)
		_ = store.Append(context.Background(), model.Session{
			ID: id, UserID: "u1", StartedAt: now.Add(time.Duration(i) * time.Hour), EndedAt: &end,
		})
	}

	h := NewHistoryHandler(store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/history", nil))
	var out []model.Session
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(out))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/history?limit=1", nil))
	out = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out) != 1 || out[0].ID != "s2" {
		t.Fatalf("limit must keep the most recent: %#v", out)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/history?start="+now.Add(30*time.Minute).Format(time.RFC3339), nil))
	out = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out) != 1 || out[0].ID != "s2" {
		t.Fatalf("start filter wrong: %#v", out)
	}
}
