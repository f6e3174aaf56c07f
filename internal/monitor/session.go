package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"netwatch/internal/metrics"
	"netwatch/internal/models"
	"netwatch/internal/outage"
)

const defaultQueueSize = 64

// Sink durably records session events and the final report.
type Sink interface {
	Record(ev models.Event) error
	RecordReport(stats models.SessionStats) error
}

// ErrSinkFailed is returned by Err when a strict session was aborted by a sink.
var ErrSinkFailed = errors.New("monitor: sink failed")

// Options configures a Session.
type Options struct {
	// ID defaults to a random uuid. Sinks that key rows by session need it
	// before the session exists.
	ID string
	// Start defaults to Now at construction.
	Start time.Time

	Interval          time.Duration
	FailureThreshold  int
	RecoveryThreshold int
	// StrictSinks aborts the session on the first sink error instead of
	// logging it and carrying on.
	StrictSinks bool
	QueueSize   int
	// Now defaults to a UTC wall clock that advances with the monotonic clock,
	// so wall clock steps do not move tick timestamps backwards.
	Now func() time.Time
	// Trigger replaces the interval ticker when set. Each receive fires one tick.
	Trigger <-chan time.Time
}

// Session drives one monitoring run: a scheduler goroutine samples targets
// on every tick and queues the tick status; a single consumer goroutine owns
// the detector and aggregator and feeds the sink in tick order.
type Session struct {
	id      string
	opts    Options
	sampler *Sampler
	sink    Sink
	now     func() time.Time

	detector *outage.Detector

	mu  sync.RWMutex
	agg *metrics.Aggregator
	err error

	// lastTick is owned by the scheduler goroutine.
	lastTick time.Time

	ticks     chan models.TickStatus
	startOnce sync.Once
	stopCh    chan struct{}
	stopOnce  sync.Once
	abortCh   chan struct{}
	abortOnce sync.Once
	doneCh    chan struct{}
	final     models.SessionStats
}

// NewSession configures a session; nothing runs until Start.
func NewSession(opts Options, targets []models.Target, sampler *Sampler, sink Sink) (*Session, error) {
	if opts.Interval <= 0 && opts.Trigger == nil {
		return nil, fmt.Errorf("monitor: interval must be positive, got %s", opts.Interval)
	}
	if len(targets) == 0 {
		return nil, errors.New("monitor: at least one target is required")
	}
	if opts.RecoveryThreshold == 0 {
		opts.RecoveryThreshold = opts.FailureThreshold
	}
	detector, err := outage.NewDetector(opts.FailureThreshold, opts.RecoveryThreshold)
	if err != nil {
		return nil, err
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	now := opts.Now
	if now == nil {
		now = monotonicClock(time.Now())
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	start := opts.Start
	if start.IsZero() {
		start = now()
	}
	return &Session{
		id:       id,
		opts:     opts,
		sampler:  sampler,
		sink:     sink,
		now:      now,
		detector: detector,
		agg:      metrics.NewAggregator(id, start, targets),
		ticks:    make(chan models.TickStatus, opts.QueueSize),
		stopCh:   make(chan struct{}),
		abortCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start launches the scheduler and the consumer. The first tick fires
// immediately. Calls after the first, or after Stop, do nothing.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		log.Printf("monitor: session %s started interval=%s", s.id, s.opts.Interval)
		go s.consume()
		go s.run()
	})
}

// Stop lets the in-flight tick finish, schedules no further ticks, waits for
// the queue to drain and returns the final report. A session that was never
// started finalizes with zero ticks.
func (s *Session) Stop() models.SessionStats {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.startOnce.Do(func() {
		close(s.ticks)
		go s.consume()
	})
	<-s.doneCh
	return s.final
}

// Done is closed once the session has fully terminated, either through Stop
// or because a strict sink aborted it.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the reason a session aborted itself, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Report returns a mid-session snapshot. It does not change session state.
func (s *Session) Report() models.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg.Report(s.now())
}

func (s *Session) tick(ctx context.Context) {
	ts := s.now()
	if ts.Before(s.lastTick) {
		ts = s.lastTick
	}
	s.lastTick = ts
	results := s.sampler.Sample(ctx)
	s.ticks <- Aggregate(results, ts)
}

func (s *Session) run() {
	defer close(s.ticks)

	// Probes are not cancelled on stop; each is bounded by its own timeout.
	ctx := context.Background()
	s.tick(ctx)

	trigger := s.opts.Trigger
	if trigger == nil {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		trigger = ticker.C
	}

	for {
		select {
		case <-trigger:
			if s.stopping() {
				return
			}
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-s.abortCh:
			return
		}
	}
}

func (s *Session) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	case <-s.abortCh:
		return true
	default:
		return false
	}
}

func (s *Session) aborted() bool {
	select {
	case <-s.abortCh:
		return true
	default:
		return false
	}
}

func (s *Session) consume() {
	defer close(s.doneCh)

	for tick := range s.ticks {
		for _, ev := range s.detector.Observe(tick) {
			s.mu.Lock()
			s.agg.Apply(ev)
			s.mu.Unlock()

			logEvent(ev)
			if s.aborted() {
				continue
			}
			if err := s.sink.Record(ev); err != nil {
				s.sinkFailed(err)
			}
		}
	}

	s.mu.Lock()
	s.final = s.agg.Final(s.now())
	s.mu.Unlock()

	if err := s.sink.RecordReport(s.final); err != nil {
		log.Printf("monitor: record report: %v", err)
	}
	log.Printf("monitor: session %s stopped ticks=%d outages=%d uptime=%.2f%%",
		s.id, s.final.TotalTicks, s.final.OutageCount, s.final.UptimePercent)
}

func (s *Session) sinkFailed(err error) {
	log.Printf("monitor: sink error: %v", err)
	if !s.opts.StrictSinks {
		return
	}
	s.abortOnce.Do(func() {
		s.mu.Lock()
		s.err = fmt.Errorf("%w: %w", ErrSinkFailed, err)
		s.mu.Unlock()
		close(s.abortCh)
	})
}

// monotonicClock returns wall time at origin advanced by the monotonic
// clock reading carried in origin.
func monotonicClock(origin time.Time) func() time.Time {
	wall := origin.UTC()
	return func() time.Time {
		return wall.Add(time.Since(origin))
	}
}

func logEvent(ev models.Event) {
	switch ev.Kind {
	case models.EventOutageStarted:
		log.Printf("monitor: OUTAGE DETECTED start=%s", ev.Timestamp.Format(time.RFC3339))
	case models.EventOutageEnded:
		log.Printf("monitor: connection restored at=%s outage=%s",
			ev.Timestamp.Format(time.RFC3339), ev.Timestamp.Sub(ev.OutageStart))
	}
}
