package probe

import (
	"context"
	"fmt"
	"time"

	"netwatch/internal/models"
)

// Prober issues one connectivity check against one target. Ordinary network
// failures are reported as Succeeded=false; an error means the target itself
// cannot be probed (unsupported kind, malformed address).
type Prober interface {
	Probe(ctx context.Context, target models.Target) (models.ProbeResult, error)
}

// Func adapts a plain function to the Prober interface.
type Func func(ctx context.Context, target models.Target) (models.ProbeResult, error)

// Probe calls f.
func (f Func) Probe(ctx context.Context, target models.Target) (models.ProbeResult, error) {
	return f(ctx, target)
}

// Registry dispatches probes to a Prober registered for the target kind.
type Registry struct {
	probers map[models.ProbeKind]Prober
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{probers: make(map[models.ProbeKind]Prober)}
}

// Default returns a registry with every built-in prober.
func Default(icmpPrivileged bool) *Registry {
	r := NewRegistry()
	r.Register(models.ProbeICMP, &ICMP{Privileged: icmpPrivileged})
	r.Register(models.ProbeTCP, &TCP{})
	r.Register(models.ProbeDNS, &DNS{})
	r.Register(models.ProbeHTTP, NewHTTP())
	return r
}

// Register installs p for kind, replacing any previous prober.
func (r *Registry) Register(kind models.ProbeKind, p Prober) {
	r.probers[kind] = p
}

// Supports reports whether a prober is registered for kind.
func (r *Registry) Supports(kind models.ProbeKind) bool {
	_, ok := r.probers[kind]
	return ok
}

// Probe implements Prober.
func (r *Registry) Probe(ctx context.Context, target models.Target) (models.ProbeResult, error) {
	p, ok := r.probers[target.Kind]
	if !ok {
		return failed(target, "unsupported probe kind"), fmt.Errorf("probe %s: unsupported kind %q", target.ID, target.Kind)
	}
	return p.Probe(ctx, target)
}

func succeeded(target models.Target, latency time.Duration) models.ProbeResult {
	return models.ProbeResult{
		TargetID:  target.ID,
		Kind:      target.Kind,
		Succeeded: true,
		Latency:   &latency,
		Timestamp: time.Now().UTC(),
	}
}

func failed(target models.Target, msg string) models.ProbeResult {
	return models.ProbeResult{
		TargetID:  target.ID,
		Kind:      target.Kind,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}

// deadline returns the time left on ctx, or fallback when ctx has no deadline.
func deadline(ctx context.Context, fallback time.Duration) time.Duration {
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left > 0 {
			return left
		}
		return time.Millisecond
	}
	return fallback
}
