package compliance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	dErrors "seedtrace/pkg/domain-errors"
	strutil "seedtrace/pkg/platform/strings"
)

// Penalties is the score deduction per failed check.
type Penalties struct {
	IncompleteEventChain int `yaml:"incomplete_event_chain"`
	MissingCertification int `yaml:"missing_certification"`
	MissingLocation      int `yaml:"missing_location"`
	QualityFlag          int `yaml:"quality_flag"`
	BrokenLineage        int `yaml:"broken_lineage"`
}

// RuleSet parameterizes scoring. It is loaded from YAML; keys left out of
// the file keep their defaults.
type RuleSet struct {
	PassingScore          int       `yaml:"passing_score"`
	MinDistinctEventTypes int       `yaml:"min_distinct_event_types"`
	Regulations           []string  `yaml:"regulations"`
	Penalties             Penalties `yaml:"penalties"`
}

// DefaultRules returns the stock GACP rule set.
func DefaultRules() RuleSet {
	return RuleSet{
		PassingScore:          75,
		MinDistinctEventTypes: 3,
		Regulations:           []string{"WHO GACP", "Seed-to-sale traceability"},
		Penalties: Penalties{
			IncompleteEventChain: 20,
			MissingCertification: 15,
			MissingLocation:      10,
			QualityFlag:          25,
			BrokenLineage:        10,
		},
	}
}

func (r RuleSet) Validate() error {
	if r.PassingScore < 0 || r.PassingScore > maxScore {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("passing_score must be within 0..%d", maxScore))
	}
	if r.MinDistinctEventTypes < 1 {
		return dErrors.New(dErrors.CodeValidation, "min_distinct_event_types must be at least 1")
	}
	for name, p := range map[string]int{
		"incomplete_event_chain": r.Penalties.IncompleteEventChain,
		"missing_certification":  r.Penalties.MissingCertification,
		"missing_location":       r.Penalties.MissingLocation,
		"quality_flag":           r.Penalties.QualityFlag,
		"broken_lineage":         r.Penalties.BrokenLineage,
	} {
		if p < 0 || p > maxScore {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("penalty %s must be within 0..%d", name, maxScore))
		}
	}
	return nil
}

// ParseRules decodes a YAML rule set on top of the defaults.
func ParseRules(data []byte) (RuleSet, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RuleSet{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid compliance rules")
	}
	rules.Regulations = strutil.DedupeAndTrim(rules.Regulations)
	if err := rules.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rules, nil
}

// LoadRules reads a YAML rule set from path. An empty path yields the
// defaults.
func LoadRules(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read compliance rules: %w", err)
	}
	return ParseRules(data)
}
