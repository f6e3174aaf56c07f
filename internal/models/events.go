package models

import "time"

// EventKind tags an Event.
type EventKind string

const (
	EventTickObserved  EventKind = "tick_observed"
	EventOutageStarted EventKind = "outage_started"
	EventOutageEnded   EventKind = "outage_ended"
)

// Event is emitted by the outage detector for every tick and on every
// confirmed state transition.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Tick is set for EventTickObserved.
	Tick *TickStatus `json:"tick,omitempty"`
	// OutageStart is set for EventOutageEnded.
	OutageStart time.Time `json:"outage_start,omitzero"`
}

// TickObserved wraps a tick status in an event.
func TickObserved(tick TickStatus) Event {
	return Event{Kind: EventTickObserved, Timestamp: tick.Timestamp, Tick: &tick}
}

// OutageStarted marks the backdated start of a confirmed outage.
func OutageStarted(at time.Time) Event {
	return Event{Kind: EventOutageStarted, Timestamp: at}
}

// OutageEnded marks the backdated end of the outage that began at start.
func OutageEnded(start, at time.Time) Event {
	return Event{Kind: EventOutageEnded, Timestamp: at, OutageStart: start}
}

// OutageInterval is a confirmed span of unreachability. End is nil while the
// outage is ongoing; in report snapshots Duration is then provisional.
type OutageInterval struct {
	Start    time.Time     `json:"start"`
	End      *time.Time    `json:"end,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Ongoing reports whether the interval has not been closed yet.
func (o OutageInterval) Ongoing() bool {
	return o.End == nil
}

// TargetStats summarises probe outcomes for one target over a session.
type TargetStats struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Kind          ProbeKind `json:"kind"`
	Checks        int       `json:"checks"`
	Passing       int       `json:"passing"`
	Failing       int       `json:"failing"`
	UptimePercent float64   `json:"uptime_percent"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	MinLatencyMs  float64   `json:"min_latency_ms"`
	MaxLatencyMs  float64   `json:"max_latency_ms"`
}

// SessionStats is an immutable snapshot of a monitoring session.
type SessionStats struct {
	SessionID      string           `json:"session_id"`
	Start          time.Time        `json:"start"`
	End            *time.Time       `json:"end,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Runtime        time.Duration    `json:"runtime"`
	TotalTicks     int              `json:"total_ticks"`
	ReachableTicks int              `json:"reachable_ticks"`
	UptimePercent  float64          `json:"uptime_percent"`
	Outages        []OutageInterval `json:"outages"`
	OutageCount    int              `json:"outage_count"`
	TotalDowntime  time.Duration    `json:"total_downtime"`
	LongestOutage  time.Duration    `json:"longest_outage"`
	ShortestOutage time.Duration    `json:"shortest_outage"`
	AverageOutage  time.Duration    `json:"average_outage"`
	AvgLatencyMs   float64          `json:"avg_latency_ms"`
	Targets        []TargetStats    `json:"targets,omitempty"`
}

// FailedTicks returns the number of ticks where no target was reachable.
func (s SessionStats) FailedTicks() int {
	return s.TotalTicks - s.ReachableTicks
}

// OpenOutage returns the ongoing outage, if any.
func (s SessionStats) OpenOutage() (OutageInterval, bool) {
	if n := len(s.Outages); n > 0 && s.Outages[n-1].Ongoing() {
		return s.Outages[n-1], true
	}
	return OutageInterval{}, false
}
