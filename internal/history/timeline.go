package history

import (
	"time"

	"netwatch/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots we generate per timeline.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

// BuildOutageTimeline reduces a session snapshot into compact timeline points
// between start and end. Buckets fully inside an outage are unavailable,
// buckets touched by one are interrupted, and buckets outside the session
// have no data.
func BuildOutageTimeline(stats models.SessionStats, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	observedEnd := stats.GeneratedAt
	if stats.End != nil {
		observedEnd = *stats.End
	}

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	output := make([]models.TimelinePoint, 0, points)
	cursor := 0
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		point := models.TimelinePoint{Start: bucketStart, End: bucketEnd}
		var covered time.Duration
		cursor = skipOutagesBefore(stats.Outages, bucketStart, observedEnd, cursor)
		for j := cursor; j < len(stats.Outages); j++ {
			o := stats.Outages[j]
			if !o.Start.Before(bucketEnd) {
				break
			}
			oEnd := outageEnd(o, observedEnd)
			lo, hi := maxTime(o.Start, bucketStart), minTime(oEnd, bucketEnd)
			if !hi.After(lo) {
				continue
			}
			covered += hi.Sub(lo)
			if len(point.Details) < maxDetailsPerPoint {
				point.Details = append(point.Details, detail(o))
			}
		}

		switch {
		case len(point.Details) > 0 && covered >= bucketEnd.Sub(bucketStart):
			point.ClassName, point.Label = "state-error", "Unavailable"
		case len(point.Details) > 0:
			point.ClassName, point.Label = "state-warning", "Interrupted"
		case !bucketEnd.After(stats.Start) || !bucketStart.Before(observedEnd):
			point.ClassName, point.Label = "state-missing", "No data"
		default:
			point.ClassName, point.Label = "state-success", "Operational"
		}
		output = append(output, point)
	}
	return output
}

func skipOutagesBefore(outages []models.OutageInterval, t, observedEnd time.Time, cursor int) int {
	for cursor < len(outages) && !outageEnd(outages[cursor], observedEnd).After(t) {
		cursor++
	}
	return cursor
}

func outageEnd(o models.OutageInterval, observedEnd time.Time) time.Time {
	if o.End != nil {
		return *o.End
	}
	return observedEnd
}

func detail(o models.OutageInterval) models.TimelineDetail {
	d := models.TimelineDetail{Start: o.Start, Ongoing: o.Ongoing()}
	if o.End != nil {
		end := *o.End
		d.End = &end
	}
	return d
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
