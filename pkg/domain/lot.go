package domain

import dErrors "seedtrace/pkg/domain-errors"

// LotType classifies a batch of material.
type LotType string

const (
	LotTypeSeed    LotType = "seed_lot"
	LotTypePlant   LotType = "plant_lot"
	LotTypeHarvest LotType = "harvest_lot"
	LotTypeProduct LotType = "product_lot"
)

var validLotTypes = map[LotType]bool{
	LotTypeSeed:    true,
	LotTypePlant:   true,
	LotTypeHarvest: true,
	LotTypeProduct: true,
}

// ParseLotType constructs a LotType from external input.
func ParseLotType(s string) (LotType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "lot type cannot be empty")
	}
	t := LotType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid lot type: "+s)
	}
	return t, nil
}

func (t LotType) IsValid() bool {
	return validLotTypes[t]
}

func (t LotType) String() string {
	return string(t)
}

// LotStatus is the soft lifecycle state of a lot. Lots are never deleted;
// they end in one of the terminal states.
type LotStatus string

const (
	LotStatusActive    LotStatus = "active"
	LotStatusConsumed  LotStatus = "consumed"
	LotStatusSold      LotStatus = "sold"
	LotStatusDestroyed LotStatus = "destroyed"
)

// lotStatusTransitions lists the states reachable from each state.
var lotStatusTransitions = map[LotStatus][]LotStatus{
	LotStatusActive:    {LotStatusConsumed, LotStatusSold, LotStatusDestroyed},
	LotStatusConsumed:  nil,
	LotStatusSold:      nil,
	LotStatusDestroyed: nil,
}

// ParseLotStatus constructs a LotStatus from external input.
func ParseLotStatus(s string) (LotStatus, error) {
	st := LotStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid lot status: "+s)
	}
	return st, nil
}

func (s LotStatus) IsValid() bool {
	_, ok := lotStatusTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s LotStatus) IsTerminal() bool {
	return s.IsValid() && len(lotStatusTransitions[s]) == 0
}

// CanTransitionTo reports whether a lot in s may move to next.
func (s LotStatus) CanTransitionTo(next LotStatus) bool {
	for _, allowed := range lotStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s LotStatus) String() string {
	return string(s)
}
