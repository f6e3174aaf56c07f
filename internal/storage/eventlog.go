package storage

import (
	"sync"
	"time"

	"netwatch/internal/models"
)

const defaultEventHistory = 2048

// EventLog keeps the most recent events in memory and fans new events out
// to subscribers. Slow subscribers miss events rather than block the session.
type EventLog struct {
	maxHistory int

	mu      sync.RWMutex
	history []models.Event
	final   *models.SessionStats
	subs    map[int]chan models.Event
	nextSub int
}

// NewEventLog keeps up to maxHistory events.
func NewEventLog(maxHistory int) *EventLog {
	if maxHistory <= 0 {
		maxHistory = defaultEventHistory
	}
	return &EventLog{maxHistory: maxHistory, subs: make(map[int]chan models.Event)}
}

// Record implements Sink.
func (l *EventLog) Record(ev models.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.history = append(l.history, ev)
	if len(l.history) > l.maxHistory {
		l.history = l.history[len(l.history)-l.maxHistory:]
	}
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// RecordReport implements Sink.
func (l *EventLog) RecordReport(stats models.SessionStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.final = &stats
	return nil
}

// Close implements Sink. It closes every subscription.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
	}
	return nil
}

// Final returns the final report once the session has ended.
func (l *EventLog) Final() (models.SessionStats, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.final == nil {
		return models.SessionStats{}, false
	}
	return *l.final, true
}

// History returns a copy of the retained events, oldest first.
func (l *EventLog) History() []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.history) == 0 {
		return nil
	}
	out := make([]models.Event, len(l.history))
	copy(out, l.history)
	return out
}

// HistorySince returns events whose timestamp is >= cutoff. Boundary events
// are backdated, so the history is not sorted by timestamp and is scanned in full.
func (l *EventLog) HistorySince(cutoff time.Time) []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Event
	for _, ev := range l.history {
		if !ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe returns a channel receiving every subsequent event and a func
// that cancels the subscription.
func (l *EventLog) Subscribe(buffer int) (<-chan models.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan models.Event, buffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(ch)
			}
		})
	}
}
