package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil", nil, nil},
		{"only blanks", []string{"", "  "}, nil},
		{"trims", []string{"  WHO GACP ", "EU GMP"}, []string{"WHO GACP", "EU GMP"}},
		{"keeps first occurrence", []string{"b", "a", "b", " a"}, []string{"b", "a"}},
		{"case sensitive", []string{"GACP", "gacp"}, []string{"GACP", "gacp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("", ","))
	assert.Nil(t, SplitList(" , ", ","))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, SplitList("kafka-1:9092, kafka-2:9092,kafka-1:9092", ","))
}
