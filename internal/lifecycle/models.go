package lifecycle

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
)

// Lot is a tracked batch of homogeneous material. Identity fields never
// change after creation; quantity, status and location do.
type Lot struct {
	ID          string            `json:"id"`
	LotNumber   string            `json:"lot_number"`
	Type        domain.LotType    `json:"type"`
	Species     string            `json:"species"`
	Variety     string            `json:"variety,omitempty"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Unit        string            `json:"unit"`
	Location    domain.Location   `json:"location"`
	ParentLotID string            `json:"parent_lot_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      domain.LotStatus  `json:"status"`
	QRID        string            `json:"qr_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Version     int64             `json:"version"`
}

// Plant is an individually tagged organism in a lot.
type Plant struct {
	ID        string                `json:"id"`
	Tag       string                `json:"tag"`
	LotID     string                `json:"lot_id"`
	Species   string                `json:"species"`
	Variety   string                `json:"variety,omitempty"`
	Location  domain.Location       `json:"location"`
	Stage     domain.LifecycleStage `json:"stage"`
	PlantedAt time.Time             `json:"planted_at"`
	Operator  string                `json:"operator"`
	QRID      string                `json:"qr_id"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	Version   int64                 `json:"version"`
}

// Known lot metadata keys.
const (
	MetaSource           = "source"
	MetaSupplier         = "supplier"
	MetaCertification    = "certification"
	MetaCertifiedBy      = "certified_by"
	MetaQualityGrade     = "quality_grade"
	MetaPesticideResidue = "pesticide_residue"
)

var (
	metaKeyPattern   = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	lotNumberPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,63}$`)
	plantTagPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{2,63}$`)
)

const maxMetaValueLen = 512

var knownMetaValues = map[string][]string{
	MetaQualityGrade:     {"A", "B", "C", "reject"},
	MetaPesticideResidue: {"none", "detected"},
}

// ValidateMetadata checks key shape, value length and the enumerated keys.
func ValidateMetadata(meta map[string]string) error {
	for k, v := range meta {
		if !metaKeyPattern.MatchString(k) {
			return dErrors.New(dErrors.CodeValidation, "invalid metadata key: "+k)
		}
		if len(v) > maxMetaValueLen {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("metadata %s longer than %d characters", k, maxMetaValueLen))
		}
		if allowed, ok := knownMetaValues[k]; ok && !contains(allowed, v) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("metadata %s must be one of %v", k, allowed))
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, a := range values {
		if a == v {
			return true
		}
	}
	return false
}

// CreateLotRequest carries a new lot. LotNumber is optional; one is
// generated when empty.
type CreateLotRequest struct {
	LotNumber   string            `json:"lot_number,omitempty"`
	Type        domain.LotType    `json:"type"`
	Species     string            `json:"species"`
	Variety     string            `json:"variety,omitempty"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Unit        string            `json:"unit"`
	Location    domain.Location   `json:"location"`
	ParentLotID string            `json:"parent_lot_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (r CreateLotRequest) Validate() error {
	if _, err := domain.ParseLotType(string(r.Type)); err != nil {
		return err
	}
	if r.Species == "" {
		return dErrors.New(dErrors.CodeValidation, "species is required")
	}
	if r.Quantity.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "quantity must not be negative")
	}
	if r.Unit == "" {
		return dErrors.New(dErrors.CodeValidation, "unit is required")
	}
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if r.LotNumber != "" && !lotNumberPattern.MatchString(r.LotNumber) {
		return dErrors.New(dErrors.CodeValidation, "lot number must be upper-case letters, digits and dashes")
	}
	return ValidateMetadata(r.Metadata)
}

// CreatePlantRequest carries a new plant. Species and variety default to the
// owning lot's; PlantedAt defaults to now and Operator to the caller.
type CreatePlantRequest struct {
	LotID     string          `json:"lot_id"`
	Tag       string          `json:"tag,omitempty"`
	Species   string          `json:"species,omitempty"`
	Variety   string          `json:"variety,omitempty"`
	Location  domain.Location `json:"location"`
	PlantedAt time.Time       `json:"planted_at,omitempty"`
	Operator  string          `json:"operator,omitempty"`
}

func (r CreatePlantRequest) Validate() error {
	if r.LotID == "" {
		return dErrors.New(dErrors.CodeValidation, "lot_id is required")
	}
	if r.Tag != "" && !plantTagPattern.MatchString(r.Tag) {
		return dErrors.New(dErrors.CodeValidation, "invalid plant tag")
	}
	return r.Location.Validate()
}

// StageContext describes who advanced a plant and where.
type StageContext struct {
	Operator  string           `json:"operator,omitempty"`
	Location  *domain.Location `json:"location,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Timestamp time.Time        `json:"timestamp,omitempty"`
}

// LotUpdate changes the mutable fields of a lot. Nil fields are left
// untouched; Metadata entries are merged.
type LotUpdate struct {
	Quantity *decimal.Decimal  `json:"quantity,omitempty"`
	Status   *domain.LotStatus `json:"status,omitempty"`
	Location *domain.Location  `json:"location,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (u LotUpdate) IsEmpty() bool {
	return u.Quantity == nil && u.Status == nil && u.Location == nil && len(u.Metadata) == 0
}

// LotFilter narrows a lot search. All set fields must match. CreatedFrom is
// inclusive and CreatedTo exclusive.
type LotFilter struct {
	Species     string
	Location    string
	Status      domain.LotStatus
	Type        domain.LotType
	CreatedFrom time.Time
	CreatedTo   time.Time
}
