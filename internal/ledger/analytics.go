package ledger

import (
	"sort"
	"time"

	"github.com/paulmach/orb/geo"
)

// Metrics summarizes an event history.
type Metrics struct {
	TotalEvents         int            `json:"total_events"`
	FirstEventAt        *time.Time     `json:"first_event_at,omitempty"`
	LastEventAt         *time.Time     `json:"last_event_at,omitempty"`
	TotalElapsed        time.Duration  `json:"-"`
	TotalElapsedSeconds float64        `json:"total_elapsed_seconds"`
	StageCount          int            `json:"stage_count"`
	EventTypeCounts     map[string]int `json:"event_type_counts"`
	DistanceKm          float64        `json:"distance_km"`
	MeasuredLegs        int            `json:"measured_legs"`
}

// ComputeMetrics derives supply chain metrics from events. Distance sums
// haversine legs between consecutive events that both carry coordinates.
func ComputeMetrics(events []*Event) Metrics {
	m := Metrics{EventTypeCounts: make(map[string]int)}
	if len(events) == 0 {
		return m
	}
	ordered := append([]*Event(nil), events...)
	SortHistory(ordered)

	first, last := ordered[0].Timestamp, ordered[len(ordered)-1].Timestamp
	m.TotalEvents = len(ordered)
	m.FirstEventAt, m.LastEventAt = &first, &last
	m.TotalElapsed = last.Sub(first)
	m.TotalElapsedSeconds = m.TotalElapsed.Seconds()

	meters := 0.0
	for i, e := range ordered {
		m.EventTypeCounts[e.EventType]++
		if i == 0 {
			continue
		}
		from, okFrom := ordered[i-1].Location.Point()
		to, okTo := e.Location.Point()
		if okFrom && okTo {
			meters += geo.DistanceHaversine(from, to)
			m.MeasuredLegs++
		}
	}
	m.StageCount = len(m.EventTypeCounts)
	m.DistanceKm = meters / 1000
	return m
}

// SortHistory orders events by timestamp, then by insertion sequence.
func SortHistory(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Seq < events[j].Seq
	})
}
