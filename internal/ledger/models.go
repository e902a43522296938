package ledger

import (
	"regexp"
	"time"

	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
)

// SubjectKind says whether an event is about a lot or a plant.
type SubjectKind string

const (
	SubjectLot   SubjectKind = "lot"
	SubjectPlant SubjectKind = "plant"
)

// Common event types. The set is open; any UPPER_SNAKE name is accepted.
const (
	EventSeedReceived     = "SEED_RECEIVED"
	EventSeedTested       = "SEED_TESTED"
	EventPlanted          = "PLANTED"
	EventWatered          = "WATERED"
	EventFertilized       = "FERTILIZED"
	EventInspected        = "INSPECTED"
	EventQualityTested    = "QUALITY_TESTED"
	EventHarvested        = "HARVESTED"
	EventProcessed        = "PROCESSED"
	EventPackaged         = "PACKAGED"
	EventShipped          = "SHIPPED"
	EventReceived         = "RECEIVED"
	EventLifecycleChanged = "LIFECYCLE_CHANGED"
)

var eventTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

// Event is an immutable fact about exactly one lot or plant. Seq is the
// store's insertion counter and breaks timestamp ties.
type Event struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	LotID      string          `json:"lot_id,omitempty"`
	PlantID    string          `json:"plant_id,omitempty"`
	EventType  string          `json:"event_type"`
	Timestamp  time.Time       `json:"timestamp"`
	Operator   string          `json:"operator"`
	Location   domain.Location `json:"location"`
	Details    map[string]any  `json:"details,omitempty"`
	Verified   bool            `json:"verified"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// SubjectID returns the lot or plant id the event belongs to.
func (e *Event) SubjectID() string {
	if e.LotID != "" {
		return e.LotID
	}
	return e.PlantID
}

// SubjectKind returns the kind of the event's subject.
func (e *Event) SubjectKind() SubjectKind {
	if e.LotID != "" {
		return SubjectLot
	}
	return SubjectPlant
}

// RecordEventRequest carries a new event. Exactly one of LotID and PlantID
// must be set. A zero Timestamp means "now".
type RecordEventRequest struct {
	LotID     string          `json:"lot_id,omitempty"`
	PlantID   string          `json:"plant_id,omitempty"`
	EventType string          `json:"event_type"`
	Operator  string          `json:"operator,omitempty"`
	Location  domain.Location `json:"location"`
	Details   map[string]any  `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Verified  bool            `json:"verified,omitempty"`
}

func (r RecordEventRequest) subject() (SubjectKind, string, error) {
	switch {
	case r.LotID != "" && r.PlantID != "":
		return "", "", dErrors.New(dErrors.CodeValidation, "event must reference either a lot or a plant, not both")
	case r.LotID != "":
		return SubjectLot, r.LotID, nil
	case r.PlantID != "":
		return SubjectPlant, r.PlantID, nil
	default:
		return "", "", dErrors.New(dErrors.CodeValidation, "event must reference a lot or a plant")
	}
}

// Validate checks everything that does not need the store.
func (r RecordEventRequest) Validate() error {
	if _, _, err := r.subject(); err != nil {
		return err
	}
	if !eventTypePattern.MatchString(r.EventType) {
		return dErrors.New(dErrors.CodeValidation, "event type must be UPPER_SNAKE_CASE: "+r.EventType)
	}
	if r.Location != (domain.Location{}) {
		if err := r.Location.Validate(); err != nil {
			return err
		}
	}
	return ValidateDetails(r.Details)
}
