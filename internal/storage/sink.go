// Package storage holds the sinks that durably record a monitoring session.
package storage

import (
	"errors"
	"fmt"
	"time"

	"netwatch/internal/models"
)

// TimestampFormat is used for every human readable timestamp.
const TimestampFormat = "2006-01-02 15:04:05 MST"

// Sink receives every event of a session and its final report.
type Sink interface {
	Record(ev models.Event) error
	RecordReport(stats models.SessionStats) error
	Close() error
}

// Multi fans events out to several sinks. Every sink sees every call even if
// an earlier one failed; the errors are joined.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ev models.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordReport implements Sink.
func (m Multi) RecordReport(stats models.SessionStats) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordReport(stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatDuration renders d as "1h 2m 3s", dropping leading zero units.
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func sessionStamp(t time.Time) string {
	return t.Format("20060102_150405")
}
