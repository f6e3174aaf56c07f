// Package outage turns a stream of per-tick reachability signals into
// debounced outage boundaries.
package outage

import (
	"fmt"
	"time"

	"netwatch/internal/models"
)

// State is the confirmed connectivity state.
type State int

const (
	Up State = iota
	Down
)

func (s State) String() string {
	if s == Down {
		return "down"
	}
	return "up"
}

// Detector is a constant-memory transducer from TickStatus values to events.
// A transition is confirmed after a run of consecutive opposite signals and
// is backdated to the first tick of that run. It is not safe for concurrent use.
type Detector struct {
	failThreshold    int
	recoverThreshold int

	state    State
	count    int
	runStart time.Time
	// outageStart is the start of the open outage while in Down.
	outageStart time.Time
}

// NewDetector returns a detector in the Up state. Both thresholds must be at least 1.
func NewDetector(failThreshold, recoverThreshold int) (*Detector, error) {
	if failThreshold < 1 {
		return nil, fmt.Errorf("outage: failure threshold must be at least 1, got %d", failThreshold)
	}
	if recoverThreshold < 1 {
		return nil, fmt.Errorf("outage: recovery threshold must be at least 1, got %d", recoverThreshold)
	}
	return &Detector{failThreshold: failThreshold, recoverThreshold: recoverThreshold}, nil
}

// State returns the current confirmed state.
func (d *Detector) State() State {
	return d.state
}

// Observe consumes one tick. The returned slice always starts with the
// TickObserved event, followed by at most one boundary event.
func (d *Detector) Observe(tick models.TickStatus) []models.Event {
	events := []models.Event{models.TickObserved(tick)}

	switch d.state {
	case Up:
		if tick.Reachable {
			d.count = 0
			break
		}
		if d.count == 0 {
			d.runStart = tick.Timestamp
		}
		d.count++
		if d.count >= d.failThreshold {
			d.state = Down
			d.count = 0
			d.outageStart = d.runStart
			events = append(events, models.OutageStarted(d.outageStart))
		}
	case Down:
		if !tick.Reachable {
			d.count = 0
			break
		}
		if d.count == 0 {
			d.runStart = tick.Timestamp
		}
		d.count++
		if d.count >= d.recoverThreshold {
			d.state = Up
			d.count = 0
			events = append(events, models.OutageEnded(d.outageStart, d.runStart))
			d.outageStart = time.Time{}
		}
	}
	return events
}
