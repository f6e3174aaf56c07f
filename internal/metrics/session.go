// Package metrics accumulates detector events into session statistics.
package metrics

import (
	"fmt"
	"time"

	"netwatch/internal/models"
)

// Aggregator accumulates session statistics from detector events. It has a
// single writer; callers that read reports from other goroutines must
// serialise access themselves.
type Aggregator struct {
	sessionID string
	start     time.Time

	totalTicks     int
	reachableTicks int
	lastTick       time.Time

	outages       []models.OutageInterval
	closedTotal   time.Duration
	longestClosed time.Duration

	targets *targetTracker
}

// NewAggregator starts a session at start. targets only supplies display names.
func NewAggregator(sessionID string, start time.Time, targets []models.Target) *Aggregator {
	return &Aggregator{
		sessionID: sessionID,
		start:     start,
		targets:   newTargetTracker(targets),
	}
}

// Apply folds one event into the session. Events that break the detector's
// contract panic: they mean an upstream bug, and carrying on would corrupt
// the statistics.
func (a *Aggregator) Apply(ev models.Event) {
	switch ev.Kind {
	case models.EventTickObserved:
		if ev.Tick == nil {
			panic("metrics: tick event without tick status")
		}
		if !a.lastTick.IsZero() && ev.Tick.Timestamp.Before(a.lastTick) {
			panic(fmt.Sprintf("metrics: tick at %s precedes previous tick at %s", ev.Tick.Timestamp, a.lastTick))
		}
		a.lastTick = ev.Tick.Timestamp
		a.totalTicks++
		if ev.Tick.Reachable {
			a.reachableTicks++
		}
		for _, r := range ev.Tick.Results {
			a.targets.add(r)
		}
	case models.EventOutageStarted:
		if _, open := a.open(); open {
			panic(fmt.Sprintf("metrics: outage started at %s while another is open", ev.Timestamp))
		}
		if n := len(a.outages); n > 0 && ev.Timestamp.Before(*a.outages[n-1].End) {
			panic(fmt.Sprintf("metrics: outage start %s overlaps previous outage", ev.Timestamp))
		}
		a.outages = append(a.outages, models.OutageInterval{Start: ev.Timestamp})
	case models.EventOutageEnded:
		idx, open := a.open()
		if !open {
			panic(fmt.Sprintf("metrics: outage ended at %s with no open outage", ev.Timestamp))
		}
		o := &a.outages[idx]
		if ev.Timestamp.Before(o.Start) {
			panic(fmt.Sprintf("metrics: outage end %s precedes its start %s", ev.Timestamp, o.Start))
		}
		end := ev.Timestamp
		o.End = &end
		o.Duration = end.Sub(o.Start)
		a.closedTotal += o.Duration
		if o.Duration > a.longestClosed {
			a.longestClosed = o.Duration
		}
	default:
		panic(fmt.Sprintf("metrics: unknown event kind %q", ev.Kind))
	}
}

// Report returns a snapshot as of now without changing any state. An open
// outage is reported with the provisional duration now-start and is counted
// in total downtime and the longest/shortest/average figures.
func (a *Aggregator) Report(now time.Time) models.SessionStats {
	stats := models.SessionStats{
		SessionID:      a.sessionID,
		Start:          a.start,
		GeneratedAt:    now,
		TotalTicks:     a.totalTicks,
		ReachableTicks: a.reachableTicks,
		OutageCount:    len(a.outages),
		TotalDowntime:  a.closedTotal,
		LongestOutage:  a.longestClosed,
		AvgLatencyMs:   a.targets.avgLatency(),
		Targets:        a.targets.snapshot(),
	}
	if now.After(a.start) {
		stats.Runtime = now.Sub(a.start)
	}
	if a.totalTicks > 0 {
		stats.UptimePercent = round2(float64(a.reachableTicks) / float64(a.totalTicks) * 100)
	}

	stats.Outages = make([]models.OutageInterval, len(a.outages))
	for i, o := range a.outages {
		if o.End != nil {
			end := *o.End
			o.End = &end
		} else {
			o.Duration = 0
			if now.After(o.Start) {
				o.Duration = now.Sub(o.Start)
			}
			stats.TotalDowntime += o.Duration
			if o.Duration > stats.LongestOutage {
				stats.LongestOutage = o.Duration
			}
		}
		stats.Outages[i] = o
		if i == 0 || o.Duration < stats.ShortestOutage {
			stats.ShortestOutage = o.Duration
		}
	}
	if n := len(stats.Outages); n > 0 {
		stats.AverageOutage = stats.TotalDowntime / time.Duration(n)
	}
	return stats
}

// Final is Report with the session end set to now.
func (a *Aggregator) Final(now time.Time) models.SessionStats {
	stats := a.Report(now)
	end := now
	stats.End = &end
	return stats
}

func (a *Aggregator) open() (int, bool) {
	n := len(a.outages)
	if n > 0 && a.outages[n-1].End == nil {
		return n - 1, true
	}
	return 0, false
}
