package models

import "time"

// TimelinePoint represents a single compact point in the connectivity timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail carries extra information for problematic buckets.
type TimelineDetail struct {
	Start   time.Time  `json:"start"`
	End     *time.Time `json:"end,omitempty"`
	Ongoing bool       `json:"ongoing,omitempty"`
}
