package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"netwatch/internal/models"
)

const (
	streamReportInterval = 30 * time.Second
	streamWriteTimeout   = 5 * time.Second
	streamBuffer         = 256
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// streamMessage is one websocket frame: either a report snapshot or an event.
type streamMessage struct {
	Type   string               `json:"type"`
	Report *models.SessionStats `json:"report,omitempty"`
	Event  *models.Event        `json:"event,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveStream(conn)
}

// serveStream sends a report on connect and every streamReportInterval, and
// forwards every event as it is recorded.
func (s *Server) serveStream(conn *websocket.Conn) {
	defer conn.Close()

	events, cancel := s.events.Subscribe(streamBuffer)
	defer cancel()

	if err := s.writeReport(conn); err != nil {
		return
	}

	ticker := time.NewTicker(streamReportInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeMessage(conn, streamMessage{Type: "event", Event: &ev}); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writeReport(conn); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) writeReport(conn *websocket.Conn) error {
	report := s.reports.Report()
	return writeMessage(conn, streamMessage{Type: "report", Report: &report})
}

func writeMessage(conn *websocket.Conn, msg streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(msg)
}
