package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "seedtrace/pkg/domain-errors"
)

func TestParseRulesOverlaysDefaults(t *testing.T) {
	rules, err := ParseRules([]byte(`
passing_score: 80
penalties:
  quality_flag: 40
regulations:
  - Thai FDA cannabis GACP
  - " Thai FDA cannabis GACP "
  - ""
`))
	require.NoError(t, err)

	assert.Equal(t, 80, rules.PassingScore)
	assert.Equal(t, 40, rules.Penalties.QualityFlag)
	assert.Equal(t, 20, rules.Penalties.IncompleteEventChain)
	assert.Equal(t, 3, rules.MinDistinctEventTypes)
	assert.Equal(t, []string{"Thai FDA cannabis GACP"}, rules.Regulations)
}

func TestParseRulesRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"malformed yaml":      "passing_score: [",
		"score above 100":     "passing_score: 101",
		"negative penalty":    "penalties:\n  broken_lineage: -1",
		"zero distinct types": "min_distinct_event_types: 0",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestLoadRules(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		rules, err := LoadRules("")
		require.NoError(t, err)
		assert.Equal(t, DefaultRules(), rules)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte("min_distinct_event_types: 5\n"), 0o600))
		rules, err := LoadRules(path)
		require.NoError(t, err)
		assert.Equal(t, 5, rules.MinDistinctEventTypes)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
