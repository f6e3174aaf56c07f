package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"netwatch/internal/models"
)

const ruleWidth = 80

// ReportWriter renders the final session report to report_<stamp>.txt and
// report_<stamp>.json. It ignores individual events.
type ReportWriter struct {
	dir      string
	logFiles []string

	mu        sync.Mutex
	lastPaths []string
}

// NewReportWriter writes reports into dir; logFiles are listed in the text report.
func NewReportWriter(dir string, logFiles ...string) (*ReportWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure report directory: %w", err)
	}
	return &ReportWriter{dir: dir, logFiles: logFiles}, nil
}

// Record implements Sink.
func (w *ReportWriter) Record(models.Event) error { return nil }

// RecordReport implements Sink.
func (w *ReportWriter) RecordReport(stats models.SessionStats) error {
	base := filepath.Join(w.dir, "report_"+sessionStamp(stats.GeneratedAt))

	var text strings.Builder
	if err := RenderReport(&text, stats, w.logFiles); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := writeFileAtomic(base+".txt", []byte(text.String())); err != nil {
		return err
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := writeFileAtomic(base+".json", data); err != nil {
		return err
	}

	w.mu.Lock()
	w.lastPaths = []string{base + ".txt", base + ".json"}
	w.mu.Unlock()
	return nil
}

// Paths returns the files written by the last RecordReport call.
func (w *ReportWriter) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.lastPaths...)
}

// Close implements Sink.
func (w *ReportWriter) Close() error { return nil }

// RenderReport writes the human readable session report.
func RenderReport(out io.Writer, stats models.SessionStats, logFiles []string) error {
	rule := strings.Repeat("=", ruleWidth)
	end := stats.GeneratedAt
	if stats.End != nil {
		end = *stats.End
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("NETWORK MONITORING REPORT")
	line(rule)
	line("")
	line("MONITORING PERIOD")
	line("  Session:        %s", stats.SessionID)
	line("  Start Time:     %s", stats.Start.Format(TimestampFormat))
	line("  End Time:       %s", end.Format(TimestampFormat))
	line("  Total Duration: %s", FormatDuration(stats.Runtime))
	line("")
	line("CONNECTION SUMMARY")
	line("  Total Checks:       %d", stats.TotalTicks)
	if stats.TotalTicks > 0 {
		total := float64(stats.TotalTicks)
		line("  Successful Checks:  %d (%.2f%%)", stats.ReachableTicks, float64(stats.ReachableTicks)/total*100)
		line("  Failed Checks:      %d (%.2f%%)", stats.FailedTicks(), float64(stats.FailedTicks())/total*100)
	} else {
		line("  Successful Checks:  0")
		line("  Failed Checks:      0")
	}
	line("  Avg Response Time:  %.1f ms", stats.AvgLatencyMs)
	line("")
	line("UPTIME STATISTICS")
	line("  Uptime:             %.2f%%", stats.UptimePercent)
	line("  Total Downtime:     %s", FormatDuration(stats.TotalDowntime))
	line("  Number of Outages:  %d", stats.OutageCount)
	line("")

	if len(stats.Targets) > 0 {
		line("TARGETS")
		for _, t := range stats.Targets {
			line("  %-24s %-5s %6.2f%% up  avg %.1f ms  (%d/%d)",
				t.Name, t.Kind, t.UptimePercent, t.AvgLatencyMs, t.Passing, t.Checks)
		}
		line("")
	}

	if len(stats.Outages) > 0 {
		line("OUTAGE DETAILS")
		line(strings.Repeat("-", ruleWidth))
		for i, o := range stats.Outages {
			marker := ""
			oEnd := end
			if o.Ongoing() {
				marker = " (ONGOING)"
			} else {
				oEnd = *o.End
			}
			line("  Outage #%d%s", i+1, marker)
			line("    Start:    %s", o.Start.Format(TimestampFormat))
			line("    End:      %s", oEnd.Format(TimestampFormat))
			line("    Duration: %s", FormatDuration(o.Duration))
			line("")
		}
		if len(stats.Outages) > 1 {
			line("  Outage Statistics")
			line("    Average Duration: %s", FormatDuration(stats.AverageOutage))
			line("    Longest Outage:   %s", FormatDuration(stats.LongestOutage))
			line("    Shortest Outage:  %s", FormatDuration(stats.ShortestOutage))
			line("")
		}
	}

	if len(logFiles) > 0 {
		line(rule)
		line("LOG FILES")
		for _, f := range logFiles {
			line("  %s", f)
		}
	}
	line(rule)

	_, err := io.WriteString(out, b.String())
	return err
}

func writeFileAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace report file: %w", err)
	}
	return nil
}
