package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"netwatch/internal/models"
)

var csvHeader = []string{"Timestamp", "Status", "Target", "Response_Time_ms", "Test_Type", "Details"}

// CSVLog writes one row per probe result and state change.
type CSVLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
}

// NewCSVLog creates monitor_<stamp>.csv in dir with a header row.
func NewCSVLog(dir string, start time.Time) (*CSVLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("monitor_%s.csv", sessionStamp(start)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv log: %w", err)
	}
	l := &CSVLog{path: path, file: f, w: csv.NewWriter(f)}
	if err := l.write(csvHeader); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := l.write(row(start, "MONITOR_START", "", "", "", "Network monitoring started")); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the CSV file location.
func (l *CSVLog) Path() string {
	return l.path
}

// Record implements Sink.
func (l *CSVLog) Record(ev models.Event) error {
	switch ev.Kind {
	case models.EventTickObserved:
		for _, r := range ev.Tick.Results {
			latency := ""
			if ms, ok := r.LatencyMs(); ok {
				latency = strconv.FormatFloat(ms, 'f', 2, 64)
			}
			details := "Connection successful"
			if !r.Succeeded {
				details = "Connection failed"
				if r.Error != "" {
					details = r.Error
				}
			}
			if err := l.write(row(r.Timestamp, probeStatus(r), r.TargetID, latency, string(r.Kind), details)); err != nil {
				return err
			}
		}
		return nil
	case models.EventOutageStarted:
		return l.write(row(ev.Timestamp, "OUTAGE_START", "", "", "", "Network outage detected"))
	case models.EventOutageEnded:
		return l.write(row(ev.Timestamp, "OUTAGE_END", "", "", "",
			"Network restored. Outage duration: "+FormatDuration(ev.Timestamp.Sub(ev.OutageStart))))
	}
	return nil
}

// RecordReport implements Sink.
func (l *CSVLog) RecordReport(stats models.SessionStats) error {
	return l.write(row(stats.GeneratedAt, "MONITOR_STOP", "", "", "",
		fmt.Sprintf("Network monitoring stopped after %d checks", stats.TotalTicks)))
}

// Close implements Sink.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("flush csv log: %w", err)
	}
	return l.file.Close()
}

func (l *CSVLog) write(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(record); err != nil {
		return fmt.Errorf("write csv log: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("write csv log: %w", err)
	}
	return nil
}

func row(ts time.Time, status, target, latency, testType, details string) []string {
	return []string{ts.Format(TimestampFormat), status, target, latency, testType, details}
}
