package monitor

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"netwatch/internal/models"
	"netwatch/internal/probe"
)

const defaultProbeTimeout = 3 * time.Second

// Sampler probes every target once per tick. Fallback targets are only
// probed when none of the primary targets succeeded.
type Sampler struct {
	prober    probe.Prober
	primary   []models.Target
	fallback  []models.Target
	timeout   time.Duration
	maxActive int
}

// NewSampler splits targets into primary and fallback sets. timeout applies
// to targets without their own timeout; maxActive bounds concurrent probes.
func NewSampler(prober probe.Prober, targets []models.Target, timeout time.Duration, maxActive int) *Sampler {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	s := &Sampler{prober: prober, timeout: timeout, maxActive: maxActive}
	for _, t := range targets {
		if t.Fallback {
			s.fallback = append(s.fallback, t)
		} else {
			s.primary = append(s.primary, t)
		}
	}
	return s
}

// Sample runs one tick worth of probes and returns once every probe has
// answered or timed out.
func (s *Sampler) Sample(ctx context.Context) []models.ProbeResult {
	results := s.probeAll(ctx, s.primary)
	for _, r := range results {
		if r.Succeeded {
			return results
		}
	}
	if len(s.fallback) == 0 {
		return results
	}
	return append(results, s.probeAll(ctx, s.fallback)...)
}

func (s *Sampler) probeAll(ctx context.Context, targets []models.Target) []models.ProbeResult {
	results := make([]models.ProbeResult, len(targets))

	var g errgroup.Group
	if s.maxActive > 0 {
		g.SetLimit(s.maxActive)
	}
	for i, t := range targets {
		g.Go(func() error {
			results[i] = s.probeOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type outcome struct {
	result models.ProbeResult
	err    error
}

func (s *Sampler) probeOne(ctx context.Context, target models.Target) models.ProbeResult {
	timeout := s.timeout
	if target.TimeoutSeconds > 0 {
		timeout = time.Duration(target.TimeoutSeconds) * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A prober that ignores its context must not hold up the tick.
	done := make(chan outcome, 1)
	go func() {
		r, err := s.prober.Probe(probeCtx, target)
		done <- outcome{result: r, err: err}
	}()

	var result models.ProbeResult
	select {
	case out := <-done:
		result = out.result
		if out.err != nil {
			log.Printf("sampler: probe target=%s error=%v", target.ID, out.err)
			result = models.ProbeResult{Error: out.err.Error()}
		}
	case <-probeCtx.Done():
		result = models.ProbeResult{Error: "probe timed out"}
	}

	result.TargetID = target.ID
	result.Kind = target.Kind
	if !result.Succeeded {
		result.Latency = nil
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	return result
}
