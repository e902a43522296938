// Package compliance scores lots and plants against a GACP-style rule set.
// Evaluation is a pure function of the subject's state and event history.
package compliance

import (
	"fmt"
	"sort"
)

const maxScore = 100

// Subject kinds.
const (
	KindLot   = "lot"
	KindPlant = "plant"
)

// Check names reported in findings.
const (
	CheckEventChain    = "event_chain"
	CheckCertification = "certification"
	CheckLocation      = "location"
	CheckQuality       = "quality"
	CheckLineage       = "lineage"
)

// Lot type that may stand at the root of a lineage.
const rootLotType = "seed_lot"

// Recognized signals in metadata and event details.
const (
	keyCertification    = "certification"
	keyPesticideResidue = "pesticide_residue"
	keyQualityGrade     = "quality_grade"
	keyTestResult       = "test_result"
)

// Subject is everything the evaluator looks at. Events and Metadata cover
// the subject and its ancestors, so a plant lot inherits the seed lot's
// certification and intake events.
type Subject struct {
	ID        string
	Kind      string
	LotType   string
	HasParent bool
	Metadata  []map[string]string
	Events    []Event
}

// Event is the compliance view of a ledger event.
type Event struct {
	Type           string
	HasLocation    bool
	HasCoordinates bool
	Details        map[string]any
}

// Finding is the outcome of one check.
type Finding struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Penalty int    `json:"penalty"`
	Detail  string `json:"detail,omitempty"`
}

// Result is a compliance verdict.
type Result struct {
	SubjectID           string    `json:"subject_id"`
	SubjectKind         string    `json:"subject_kind"`
	Score               int       `json:"score"`
	Compliant           bool      `json:"compliant"`
	PassingScore        int       `json:"passing_score"`
	Regulations         []string  `json:"regulations"`
	MissingRequirements []string  `json:"missing_requirements"`
	Findings            []Finding `json:"findings"`
}

// Evaluator applies a rule set.
type Evaluator struct {
	rules RuleSet
}

func NewEvaluator(rules RuleSet) *Evaluator {
	return &Evaluator{rules: rules}
}

func (e *Evaluator) Rules() RuleSet {
	return e.rules
}

// Evaluate scores subject. The score starts at 100, loses the configured
// penalty for each failed check and never drops below zero.
func (e *Evaluator) Evaluate(subject Subject) Result {
	p := e.rules.Penalties
	findings := []Finding{
		e.checkEventChain(subject, p.IncompleteEventChain),
		checkCertification(subject, p.MissingCertification),
		checkLocation(subject, p.MissingLocation),
		checkQuality(subject, p.QualityFlag),
		checkLineage(subject, p.BrokenLineage),
	}

	score := maxScore
	missing := make([]string, 0)
	for _, f := range findings {
		if f.Passed {
			continue
		}
		score -= f.Penalty
		missing = append(missing, f.Detail)
	}
	score = max(score, 0)

	return Result{
		SubjectID:           subject.ID,
		SubjectKind:         subject.Kind,
		Score:               score,
		Compliant:           score >= e.rules.PassingScore,
		PassingScore:        e.rules.PassingScore,
		Regulations:         append([]string(nil), e.rules.Regulations...),
		MissingRequirements: missing,
		Findings:            findings,
	}
}

func (e *Evaluator) checkEventChain(s Subject, penalty int) Finding {
	types := make(map[string]struct{})
	for _, ev := range s.Events {
		types[ev.Type] = struct{}{}
	}
	if len(types) >= e.rules.MinDistinctEventTypes {
		return Finding{Check: CheckEventChain, Passed: true}
	}
	return Finding{
		Check:   CheckEventChain,
		Penalty: penalty,
		Detail: fmt.Sprintf("event chain incomplete: %d distinct event types, %d required",
			len(types), e.rules.MinDistinctEventTypes),
	}
}

func checkCertification(s Subject, penalty int) Finding {
	for _, meta := range s.Metadata {
		if meta[keyCertification] != "" {
			return Finding{Check: CheckCertification, Passed: true}
		}
	}
	for _, ev := range s.Events {
		if c, ok := ev.Details[keyCertification].(string); ok && c != "" {
			return Finding{Check: CheckCertification, Passed: true}
		}
	}
	return Finding{Check: CheckCertification, Penalty: penalty, Detail: "no certification reference"}
}

func checkLocation(s Subject, penalty int) Finding {
	var lacking int
	for _, ev := range s.Events {
		if !ev.HasLocation || !ev.HasCoordinates {
			lacking++
		}
	}
	if lacking == 0 {
		return Finding{Check: CheckLocation, Passed: true}
	}
	return Finding{
		Check:   CheckLocation,
		Penalty: penalty,
		Detail:  fmt.Sprintf("%d of %d events lack location coordinates", lacking, len(s.Events)),
	}
}

func checkQuality(s Subject, penalty int) Finding {
	flags := make(map[string]struct{})
	for _, meta := range s.Metadata {
		if meta[keyPesticideResidue] == "detected" {
			flags["pesticide residue detected"] = struct{}{}
		}
		if meta[keyQualityGrade] == "reject" {
			flags["quality grade reject"] = struct{}{}
		}
	}
	for _, ev := range s.Events {
		if residue, ok := ev.Details[keyPesticideResidue].(bool); ok && residue {
			flags["pesticide residue detected"] = struct{}{}
		}
		if result, ok := ev.Details[keyTestResult].(string); ok && result == "fail" {
			flags["failed quality test"] = struct{}{}
		}
	}
	if len(flags) == 0 {
		return Finding{Check: CheckQuality, Passed: true}
	}
	reasons := make([]string, 0, len(flags))
	for r := range flags {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	return Finding{Check: CheckQuality, Penalty: penalty, Detail: fmt.Sprintf("quality flags: %v", reasons)}
}

func checkLineage(s Subject, penalty int) Finding {
	if s.Kind != KindLot || s.LotType == rootLotType || s.HasParent {
		return Finding{Check: CheckLineage, Passed: true}
	}
	return Finding{Check: CheckLineage, Penalty: penalty, Detail: s.LotType + " has no parent lot"}
}
