package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"netwatch/internal/models"
	"netwatch/internal/storage"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type staticReports struct {
	stats models.SessionStats
}

func (s staticReports) Report() models.SessionStats { return s.stats }

func sampleReport() models.SessionStats {
	end := epoch.Add(40 * time.Second)
	return models.SessionStats{
		SessionID:      "session-1",
		Start:          epoch,
		GeneratedAt:    epoch.Add(10 * time.Minute),
		TotalTicks:     8,
		ReachableTicks: 5,
		UptimePercent:  62.5,
		Outages: []models.OutageInterval{
			{Start: epoch.Add(20 * time.Second), End: &end, Duration: 20 * time.Second},
		},
		OutageCount: 1,
		Targets: []models.TargetStats{
			{ID: "gw", Kind: models.ProbeICMP, Checks: 8, Passing: 5, Failing: 3},
		},
	}
}

func newTestServer(t *testing.T, tokenHash string) (*httptest.Server, *storage.EventLog) {
	t.Helper()
	events := storage.NewEventLog(0)
	srv := New(":0", staticReports{stats: sampleReport()}, events, tokenHash)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, events
}

func getJSON(t *testing.T, client *http.Client, req *http.Request, out any) int {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", req.URL, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", req.URL, err)
		}
	}
	return resp.StatusCode
}

func get(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestServer_Report(t *testing.T) {
	ts, _ := newTestServer(t, "")

	var report models.SessionStats
	if code := getJSON(t, ts.Client(), get(t, ts.URL+"/api/report"), &report); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if report.SessionID != "session-1" || report.UptimePercent != 62.5 {
		t.Errorf("unexpected report: %+v", report)
	}

	var outages []models.OutageInterval
	getJSON(t, ts.Client(), get(t, ts.URL+"/api/outages"), &outages)
	if len(outages) != 1 || outages[0].Duration != 20*time.Second {
		t.Errorf("unexpected outages: %+v", outages)
	}

	var targets []models.TargetStats
	getJSON(t, ts.Client(), get(t, ts.URL+"/api/targets"), &targets)
	if len(targets) != 1 || targets[0].ID != "gw" {
		t.Errorf("unexpected targets: %+v", targets)
	}
}

func TestServer_Events(t *testing.T) {
	ts, events := newTestServer(t, "")
	for i := 0; i < 5; i++ {
		tick := models.TickStatus{Timestamp: epoch.Add(time.Duration(i) * time.Second), Reachable: true}
		_ = events.Record(models.TickObserved(tick))
	}

	tests := []struct {
		name  string
		query string
		want  int
		code  int
	}{
		{"all", "", 5, http.StatusOK},
		{"limit", "?limit=2", 2, http.StatusOK},
		{"since", "?since=" + epoch.Add(3*time.Second).Format(time.RFC3339), 2, http.StatusOK},
		{"bad since", "?since=yesterday", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []models.Event
			code := getJSON(t, ts.Client(), get(t, ts.URL+"/api/events"+tt.query), &got)
			if code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, code)
			}
			if code == http.StatusOK && len(got) != tt.want {
				t.Errorf("expected %d events, got %d", tt.want, len(got))
			}
		})
	}
}

func TestServer_Timeline(t *testing.T) {
	ts, _ := newTestServer(t, "")

	var body struct {
		Timeline []models.TimelinePoint `json:"timeline"`
	}
	if code := getJSON(t, ts.Client(), get(t, ts.URL+"/api/timeline?minutes=10&points=20"), &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body.Timeline) != 20 {
		t.Fatalf("expected 20 points, got %d", len(body.Timeline))
	}
	if body.Timeline[0].ClassName != "state-warning" {
		t.Errorf("expected the first bucket to be interrupted, got %s", body.Timeline[0].ClassName)
	}
	if body.Timeline[len(body.Timeline)-1].ClassName != "state-success" {
		t.Errorf("expected the last bucket to be operational, got %s", body.Timeline[len(body.Timeline)-1].ClassName)
	}
}

func TestServer_TokenAuth(t *testing.T) {
	hash, err := HashToken("s3cret")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	ts, _ := newTestServer(t, hash)

	tests := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", "", http.StatusUnauthorized},
		{"not bearer", "Basic s3cret", "", http.StatusUnauthorized},
		{"header", "Bearer s3cret", "", http.StatusOK},
		{"query", "", "?token=s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := get(t, ts.URL+"/api/report"+tt.query)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if code := getJSON(t, ts.Client(), req, nil); code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, code)
			}
		})
	}

	if code := getJSON(t, ts.Client(), get(t, ts.URL+"/healthz"), nil); code != http.StatusOK {
		t.Errorf("healthz must not require auth, got %d", code)
	}
}

func TestServer_Stream(t *testing.T) {
	ts, events := newTestServer(t, "")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first streamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read report: %v", err)
	}
	if first.Type != "report" || first.Report == nil || first.Report.SessionID != "session-1" {
		t.Fatalf("expected a report frame first, got %+v", first)
	}

	// The subscription is registered before the report frame is written.
	_ = events.Record(models.OutageStarted(epoch.Add(20 * time.Second)))

	var second streamMessage
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if second.Type != "event" || second.Event == nil || second.Event.Kind != models.EventOutageStarted {
		t.Errorf("expected outage event frame, got %+v", second)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=500", 50},
		{"limit=-1", 50},
		{"limit=abc", 50},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/events?"+tt.query, nil)
		if got := parseLimit(req, 50); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
