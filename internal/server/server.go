package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"netwatch/internal/history"
	"netwatch/internal/models"
)

const (
	defaultHistoryLimit    = 200
	defaultTimelineMinutes = 60
	maxTimelinePoints      = 500
)

// ReportSource provides mid-session snapshots.
type ReportSource interface {
	Report() models.SessionStats
}

// EventSource exposes recent events and live subscriptions.
type EventSource interface {
	History() []models.Event
	HistorySince(time.Time) []models.Event
	Subscribe(buffer int) (<-chan models.Event, func())
}

// Server wraps HTTP serving of the session API.
type Server struct {
	httpServer   *http.Server
	reports      ReportSource
	events       EventSource
	auth         *tokenAuth
	historyLimit int
}

// New creates a configured HTTP server. An empty tokenHash disables auth.
func New(addr string, reports ReportSource, events EventSource, tokenHash string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		reports:      reports,
		events:       events,
		auth:         newTokenAuth(tokenHash),
		historyLimit: defaultHistoryLimit,
	}
	s.registerRoutes(mux)
	s.httpServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /api/report", s.auth.wrap(http.HandlerFunc(s.handleReport)))
	mux.Handle("GET /api/outages", s.auth.wrap(http.HandlerFunc(s.handleOutages)))
	mux.Handle("GET /api/targets", s.auth.wrap(http.HandlerFunc(s.handleTargets)))
	mux.Handle("GET /api/events", s.auth.wrap(http.HandlerFunc(s.handleEvents)))
	mux.Handle("GET /api/timeline", s.auth.wrap(http.HandlerFunc(s.handleTimeline)))
	mux.Handle("GET /api/stream", s.auth.wrap(http.HandlerFunc(s.handleStream)))
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Report())
}

func (s *Server) handleOutages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Report().Outages)
}

func (s *Server) handleTargets(w http.ResponseWriter, _ *http.Request) {
	targets := s.reports.Report().Targets
	if targets == nil {
		targets = []models.TargetStats{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []models.Event
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an RFC3339 timestamp"})
			return
		}
		events = s.events.HistorySince(since)
	} else {
		events = s.events.History()
	}

	limit := parseLimit(r, s.historyLimit)
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	minutes := parsePositive(r, "minutes", defaultTimelineMinutes, 24*60)
	points := parsePositive(r, "points", history.DefaultTimelinePoints, maxTimelinePoints)

	report := s.reports.Report()
	end := report.GeneratedAt
	start := end.Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, map[string]any{
		"range_start": start,
		"range_end":   end,
		"timeline":    history.BuildOutageTimeline(report, start, end, points),
	})
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func parsePositive(r *http.Request, key string, fallback, max int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
