package monitor

import (
	"time"

	"netwatch/internal/models"
)

// Aggregate combines the probe results of one tick. The network counts as
// reachable when at least one target answered.
func Aggregate(results []models.ProbeResult, ts time.Time) models.TickStatus {
	status := models.TickStatus{
		Timestamp: ts,
		Results:   make([]models.ProbeResult, len(results)),
	}
	copy(status.Results, results)
	for _, r := range results {
		if r.Succeeded {
			status.Reachable = true
			break
		}
	}
	return status
}
