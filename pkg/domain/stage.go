package domain

import dErrors "seedtrace/pkg/domain-errors"

// LifecycleStage is a plant growth stage. Stages are ordered and a plant
// only ever moves to a later one.
type LifecycleStage string

const (
	StageSeedling   LifecycleStage = "seedling"
	StageVegetative LifecycleStage = "vegetative"
	StageFlowering  LifecycleStage = "flowering"
	StageHarvest    LifecycleStage = "harvest"
)

// stageOrder is the single source of truth for stage ordering.
var stageOrder = map[LifecycleStage]int{
	StageSeedling:   1,
	StageVegetative: 2,
	StageFlowering:  3,
	StageHarvest:    4,
}

// ParseLifecycleStage constructs a LifecycleStage from external input.
func ParseLifecycleStage(s string) (LifecycleStage, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "stage cannot be empty")
	}
	st := LifecycleStage(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown lifecycle stage: "+s)
	}
	return st, nil
}

func (s LifecycleStage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// IsAfter reports whether s comes strictly later than other. Unknown stages
// are never after anything.
func (s LifecycleStage) IsAfter(other LifecycleStage) bool {
	thisOrder, thisOK := stageOrder[s]
	otherOrder, otherOK := stageOrder[other]
	if !thisOK || !otherOK {
		return false
	}
	return thisOrder > otherOrder
}

func (s LifecycleStage) String() string {
	return string(s)
}

// Stages returns every stage in growth order.
func Stages() []LifecycleStage {
	return []LifecycleStage{StageSeedling, StageVegetative, StageFlowering, StageHarvest}
}

// InitialStage is the stage every plant starts in.
func InitialStage() LifecycleStage {
	return StageSeedling
}
