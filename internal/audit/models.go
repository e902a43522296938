package audit

import (
	"encoding/json"
	"fmt"
	"time"

	dErrors "seedtrace/pkg/domain-errors"
)

// Operation is the kind of state change an audit record wraps.
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
	OperationRead   Operation = "READ"
)

// IsValid reports whether o is one of the known operations.
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRead:
		return true
	}
	return false
}

// Entity types recorded in the audit log.
const (
	EntityLot   = "lot"
	EntityPlant = "plant"
	EntityEvent = "event"
	EntityQR    = "qr_code"
)

// Entry is what callers hand to Append. Old and New are snapshots of the
// entity before and after the change and may be nil.
type Entry struct {
	EntityType string
	EntityID   string
	Operation  Operation
	ActorID    string
	ActorRole  string
	OldValue   any
	NewValue   any
}

// Record is one link of the audit chain. Records are written once and never
// edited; ID is assigned by the store in strictly ascending order.
//
// Signature is a reversible encoding of the payload, shared secret and
// timestamp. ChainHash is SimpleHash(previous.Signature + Signature). Neither
// is cryptographic: the chain gives tamper evidence for internal audit, not
// protection against an attacker who can rewrite every row.
type Record struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  Operation       `json:"operation"`
	ActorID    string          `json:"actor_id"`
	ActorRole  string          `json:"actor_role"`
	Timestamp  time.Time       `json:"timestamp"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value,omitempty"`
	Signature  string          `json:"signature"`
	ChainHash  string          `json:"chain_hash"`
}

// TrailFilter narrows an entity's audit trail. Zero values mean "any".
type TrailFilter struct {
	From      time.Time
	To        time.Time
	Operation Operation
	ActorID   string
}

// Matches reports whether r passes the filter.
func (f TrailFilter) Matches(r *Record) bool {
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.Timestamp.Before(f.To) {
		return false
	}
	if f.Operation != "" && r.Operation != f.Operation {
		return false
	}
	if f.ActorID != "" && r.ActorID != f.ActorID {
		return false
	}
	return true
}

// ChainVerification is the outcome of walking a range of the chain.
type ChainVerification struct {
	Valid      bool   `json:"valid"`
	Message    string `json:"message"`
	StartID    int64  `json:"start_id"`
	EndID      int64  `json:"end_id"`
	Checked    int    `json:"checked"`
	BrokenAtID int64  `json:"broken_at_id,omitempty"`
}

// Err converts a failed verification into a chain_integrity error carrying
// the first offending record id. It returns nil for a valid chain.
func (v *ChainVerification) Err() error {
	if v == nil || v.Valid {
		return nil
	}
	return dErrors.Wrap(&ChainIntegrityError{RecordID: v.BrokenAtID, Reason: v.Message},
		dErrors.CodeChainIntegrity, "audit chain integrity check failed")
}

// ChainIntegrityError identifies the first record whose link does not verify.
type ChainIntegrityError struct {
	RecordID int64
	Reason   string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("audit record %d: %s", e.RecordID, e.Reason)
}

// ReportRow counts records for one entity type, operation and UTC day.
type ReportRow struct {
	EntityType string    `json:"entity_type"`
	Operation  Operation `json:"operation"`
	Day        string    `json:"day"`
	Count      int       `json:"count"`
}

// Report aggregates audit activity over a time window.
type Report struct {
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	Total        int               `json:"total"`
	ByEntityType map[string]int    `json:"by_entity_type"`
	ByOperation  map[Operation]int `json:"by_operation"`
	ByActor      map[string]int    `json:"by_actor"`
	Rows         []ReportRow       `json:"rows"`
}
