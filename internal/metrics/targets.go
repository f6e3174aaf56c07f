package metrics

import (
	"math"
	"sort"

	"netwatch/internal/models"
)

type targetAcc struct {
	kind      models.ProbeKind
	passing   int
	failing   int
	latencies int
	sumMs     float64
	minMs     float64
	maxMs     float64
}

// targetTracker aggregates probe outcomes per target.
type targetTracker struct {
	names map[string]string
	state map[string]*targetAcc
}

func newTargetTracker(targets []models.Target) *targetTracker {
	tr := &targetTracker{
		names: make(map[string]string, len(targets)),
		state: make(map[string]*targetAcc, len(targets)),
	}
	for _, t := range targets {
		tr.names[t.ID] = t.DisplayName()
	}
	return tr
}

func (tr *targetTracker) add(r models.ProbeResult) {
	acc := tr.state[r.TargetID]
	if acc == nil {
		acc = &targetAcc{kind: r.Kind}
		tr.state[r.TargetID] = acc
	}
	if !r.Succeeded {
		acc.failing++
		return
	}
	acc.passing++
	ms, ok := r.LatencyMs()
	if !ok {
		return
	}
	if acc.latencies == 0 || ms < acc.minMs {
		acc.minMs = ms
	}
	if ms > acc.maxMs {
		acc.maxMs = ms
	}
	acc.latencies++
	acc.sumMs += ms
}

// avgLatency returns the mean latency over every successful probe.
func (tr *targetTracker) avgLatency() float64 {
	var sum float64
	var n int
	for _, acc := range tr.state {
		sum += acc.sumMs
		n += acc.latencies
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

func (tr *targetTracker) snapshot() []models.TargetStats {
	if len(tr.state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tr.state))
	for k := range tr.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]models.TargetStats, 0, len(keys))
	for _, id := range keys {
		data := tr.state[id]
		total := data.passing + data.failing
		uptime := 0.0
		if total > 0 {
			uptime = float64(data.passing) / float64(total) * 100
		}
		name := tr.names[id]
		if name == "" {
			name = id
		}

		result := models.TargetStats{
			ID:            id,
			Name:          name,
			Kind:          data.kind,
			Checks:        total,
			Passing:       data.passing,
			Failing:       data.failing,
			UptimePercent: round2(uptime),
			MinLatencyMs:  round2(data.minMs),
			MaxLatencyMs:  round2(data.maxMs),
		}
		if data.latencies > 0 {
			result.AvgLatencyMs = round2(data.sumMs / float64(data.latencies))
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
