package ledger

import (
	"encoding/json"
	"fmt"
	"regexp"

	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
)

// Known detail keys. Other keys are accepted as long as they are well
// formed and JSON encodable.
const (
	DetailNotes            = "notes"
	DetailTemperatureC     = "temperature_c"
	DetailHumidityPct      = "humidity_pct"
	DetailQuantity         = "quantity"
	DetailUnit             = "unit"
	DetailPesticideResidue = "pesticide_residue"
	DetailTestResult       = "test_result"
	DetailCertification    = "certification"
	DetailLab              = "lab"
	DetailDestination      = "destination"
	DetailFromStage        = "from_stage"
	DetailToStage          = "to_stage"
)

// Test results recorded under DetailTestResult.
const (
	TestResultPass    = "pass"
	TestResultFail    = "fail"
	TestResultPending = "pending"
)

const maxDetailKeys = 64

var detailKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

type detailRule func(v any) error

var knownDetails = map[string]detailRule{
	DetailNotes:            text(2000),
	DetailTemperatureC:     number(-60, 80),
	DetailHumidityPct:      number(0, 100),
	DetailQuantity:         number(0, 1e12),
	DetailUnit:             text(32),
	DetailPesticideResidue: boolean,
	DetailTestResult:       oneOf(TestResultPass, TestResultFail, TestResultPending),
	DetailCertification:    text(256),
	DetailLab:              text(256),
	DetailDestination:      text(256),
	DetailFromStage:        stage,
	DetailToStage:          stage,
}

// ValidateDetails checks known keys against their rules and the rest for
// shape only.
func ValidateDetails(details map[string]any) error {
	if len(details) > maxDetailKeys {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many detail keys (max %d)", maxDetailKeys))
	}
	for key, value := range details {
		if !detailKeyPattern.MatchString(key) {
			return dErrors.New(dErrors.CodeValidation, "invalid detail key: "+key)
		}
		if rule, ok := knownDetails[key]; ok {
			if err := rule(value); err != nil {
				return dErrors.Wrap(err, dErrors.CodeValidation, "invalid detail "+key)
			}
		}
	}
	if _, err := json.Marshal(details); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "details are not JSON encodable")
	}
	return nil
}

func text(maxLen int) detailRule {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		if len(s) > maxLen {
			return fmt.Errorf("longer than %d characters", maxLen)
		}
		return nil
	}
}

func number(lo, hi float64) detailRule {
	return func(v any) error {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
		if f < lo || f > hi {
			return fmt.Errorf("%v outside [%v, %v]", f, lo, hi)
		}
		return nil
	}
}

func boolean(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", v)
	}
	return nil
}

func oneOf(allowed ...string) detailRule {
	return func(v any) error {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %v", s, allowed)
	}
}

func stage(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	if !domain.LifecycleStage(s).IsValid() {
		return fmt.Errorf("unknown stage %q", s)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
