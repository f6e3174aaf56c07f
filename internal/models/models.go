package models

import (
	"time"
)

// ProbeKind identifies how a target is probed.
type ProbeKind string

const (
	ProbeICMP ProbeKind = "icmp"
	ProbeTCP  ProbeKind = "tcp"
	ProbeDNS  ProbeKind = "dns"
	ProbeHTTP ProbeKind = "http"
)

// Target defines a monitored network endpoint.
type Target struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	Kind           ProbeKind `yaml:"kind" json:"kind"`
	Address        string    `yaml:"address" json:"address"`
	Fallback       bool      `yaml:"fallback" json:"fallback,omitempty"`
	TimeoutSeconds int       `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
}

// DisplayName returns the name if set, otherwise the id.
func (t Target) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// ProbeResult captures the outcome of a single probe against one target.
// Latency is only set when the probe succeeded.
type ProbeResult struct {
	TargetID  string         `json:"target_id"`
	Kind      ProbeKind      `json:"kind"`
	Succeeded bool           `json:"succeeded"`
	Latency   *time.Duration `json:"latency,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// LatencyMs returns the latency in milliseconds and whether it was present.
func (r ProbeResult) LatencyMs() (float64, bool) {
	if r.Latency == nil {
		return 0, false
	}
	return float64(*r.Latency) / float64(time.Millisecond), true
}

// TickStatus stores the combined result of all probes fired in one tick.
type TickStatus struct {
	Timestamp time.Time     `json:"timestamp"`
	Reachable bool          `json:"reachable"`
	Results   []ProbeResult `json:"results"`
}
