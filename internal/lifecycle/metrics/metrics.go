package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks lot and plant mutations.
type Metrics struct {
	LotsCreated      *prometheus.CounterVec
	PlantsCreated    prometheus.Counter
	StageTransitions *prometheus.CounterVec
	RejectedChanges  *prometheus.CounterVec
	WriteConflicts   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		LotsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_lots_created_total",
			Help: "Lots created by lot type",
		}, []string{"type"}),

		PlantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seedtrace_plants_created_total",
			Help: "Plants registered",
		}),

		StageTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_plant_stage_transitions_total",
			Help: "Plant lifecycle transitions by target stage",
		}, []string{"stage"}),

		RejectedChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "seedtrace_lifecycle_rejected_changes_total",
			Help: "Lifecycle changes rejected by entity and reason",
		}, []string{"entity", "reason"}),

		WriteConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "seedtrace_lifecycle_write_conflicts_total",
			Help: "Optimistic version conflicts on lot or plant updates",
		}),
	}
}

func (m *Metrics) IncrementLotsCreated(lotType string) {
	if m != nil {
		m.LotsCreated.WithLabelValues(lotType).Inc()
	}
}

func (m *Metrics) IncrementPlantsCreated() {
	if m != nil {
		m.PlantsCreated.Inc()
	}
}

func (m *Metrics) IncrementStageTransition(stage string) {
	if m != nil {
		m.StageTransitions.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncrementRejected(entity, reason string) {
	if m != nil {
		m.RejectedChanges.WithLabelValues(entity, reason).Inc()
	}
}

func (m *Metrics) IncrementWriteConflict() {
	if m != nil {
		m.WriteConflicts.Inc()
	}
}
