package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"seedtrace/pkg/domain"
)

func TestComputeMetrics(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	withCoords := func(seq int64, typ string, h int, lat, lon float64) *Event {
		return &Event{Seq: seq, EventType: typ, Timestamp: t0.Add(time.Duration(h) * time.Hour), Location: domain.NewLocation("site", lat, lon)}
	}
	noCoords := func(seq int64, typ string, h int) *Event {
		return &Event{Seq: seq, EventType: typ, Timestamp: t0.Add(time.Duration(h) * time.Hour), Location: domain.Location{Name: "warehouse"}}
	}

	t.Run("empty history", func(t *testing.T) {
		m := ComputeMetrics(nil)
		assert.Zero(t, m.TotalEvents)
		assert.Zero(t, m.DistanceKm)
		assert.Nil(t, m.FirstEventAt)
	})

	t.Run("elapsed time and stage count", func(t *testing.T) {
		m := ComputeMetrics([]*Event{
			noCoords(3, EventHarvested, 48),
			noCoords(1, EventPlanted, 0),
			noCoords(2, EventWatered, 24),
			noCoords(4, EventWatered, 30),
		})
		assert.Equal(t, 4, m.TotalEvents)
		assert.Equal(t, 48*time.Hour, m.TotalElapsed)
		assert.Equal(t, 3, m.StageCount)
		assert.Equal(t, 2, m.EventTypeCounts[EventWatered])
		assert.Equal(t, t0, *m.FirstEventAt)
	})

	t.Run("distance sums consecutive coordinate pairs", func(t *testing.T) {
		m := ComputeMetrics([]*Event{
			withCoords(1, EventHarvested, 0, 0, 0),
			withCoords(2, EventShipped, 1, 1, 0),
			withCoords(3, EventReceived, 2, 2, 0),
		})
		assert.Equal(t, 2, m.MeasuredLegs)
		assert.InDelta(t, 222.64, m.DistanceKm, 0.5)
	})

	t.Run("pairs missing coordinates are skipped", func(t *testing.T) {
		m := ComputeMetrics([]*Event{
			withCoords(1, EventHarvested, 0, 0, 0),
			noCoords(2, EventPackaged, 1),
			withCoords(3, EventShipped, 2, 1, 0),
			withCoords(4, EventReceived, 3, 2, 0),
		})
		assert.Equal(t, 1, m.MeasuredLegs)
		assert.InDelta(t, 111.32, m.DistanceKm, 0.5)
	})
}

func TestSortHistoryBreaksTiesBySeq(t *testing.T) {
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	events := []*Event{{Seq: 3, Timestamp: ts}, {Seq: 1, Timestamp: ts}, {Seq: 2, Timestamp: ts.Add(-time.Second)}}
	SortHistory(events)
	assert.Equal(t, []int64{2, 1, 3}, []int64{events[0].Seq, events[1].Seq, events[2].Seq})
}
