package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"netwatch/internal/models"
)

// TextLog appends one line per probe result and state change to a log file.
type TextLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewTextLog creates monitor_<stamp>.log in dir and writes the start line.
func NewTextLog(dir string, start time.Time) (*TextLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("monitor_%s.log", sessionStamp(start)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open text log: %w", err)
	}
	l := &TextLog{path: path, file: f}
	if err := l.write(start, "MONITOR_START", "Network monitoring started"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the log file location.
func (l *TextLog) Path() string {
	return l.path
}

// Record implements Sink.
func (l *TextLog) Record(ev models.Event) error {
	switch ev.Kind {
	case models.EventTickObserved:
		for _, r := range ev.Tick.Results {
			if err := l.write(r.Timestamp, probeStatus(r), probeLine(r)); err != nil {
				return err
			}
		}
		return nil
	case models.EventOutageStarted:
		return l.write(ev.Timestamp, "OUTAGE_START", "Network outage detected")
	case models.EventOutageEnded:
		return l.write(ev.Timestamp, "OUTAGE_END",
			"Network restored. Outage duration: "+FormatDuration(ev.Timestamp.Sub(ev.OutageStart)))
	}
	return nil
}

// RecordReport implements Sink.
func (l *TextLog) RecordReport(stats models.SessionStats) error {
	msg := fmt.Sprintf("Network monitoring stopped after %d checks", stats.TotalTicks)
	if open, ok := stats.OpenOutage(); ok {
		msg += fmt.Sprintf(", outage ongoing for %s", FormatDuration(open.Duration))
	}
	return l.write(stats.GeneratedAt, "MONITOR_STOP", msg)
}

// Close implements Sink.
func (l *TextLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func (l *TextLog) write(ts time.Time, eventType, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.file, "[%s] %s: %s\n", ts.Format(TimestampFormat), eventType, message); err != nil {
		return fmt.Errorf("write text log: %w", err)
	}
	return nil
}

func probeStatus(r models.ProbeResult) string {
	if r.Succeeded {
		return "SUCCESS"
	}
	return "FAILURE"
}

func probeLine(r models.ProbeResult) string {
	if r.Succeeded {
		if ms, ok := r.LatencyMs(); ok {
			return fmt.Sprintf("Connection successful target=%s type=%s time=%.1fms", r.TargetID, r.Kind, ms)
		}
		return fmt.Sprintf("Connection successful target=%s type=%s", r.TargetID, r.Kind)
	}
	if r.Error != "" {
		return fmt.Sprintf("Connection failed target=%s type=%s error=%q", r.TargetID, r.Kind, r.Error)
	}
	return fmt.Sprintf("Connection failed target=%s type=%s", r.TargetID, r.Kind)
}
