package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	dErrors "seedtrace/pkg/domain-errors"
)

// lotTypeCodes maps lot types to the code embedded in lot numbers.
var lotTypeCodes = map[string]string{
	"seed_lot":    "SD",
	"plant_lot":   "PL",
	"harvest_lot": "HV",
	"product_lot": "PD",
}

// LotTypeCode returns the lot number code for lotType.
func LotTypeCode(lotType string) (string, bool) {
	code, ok := lotTypeCodes[lotType]
	return code, ok
}

// SequenceSource hands out increasing numbers per key.
type SequenceSource interface {
	Next(ctx context.Context, key string) (int64, error)
}

// LotNumbers formats lot numbers as <prefix>-<type code>-<yyyymmdd>-<seq>.
// The sequence restarts every UTC day per lot type.
type LotNumbers struct {
	prefix string
	source SequenceSource
}

func NewLotNumbers(prefix string, source SequenceSource) *LotNumbers {
	return &LotNumbers{prefix: prefix, source: source}
}

func (g *LotNumbers) Next(ctx context.Context, lotType string, ts time.Time) (string, error) {
	code, ok := LotTypeCode(lotType)
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown lot type: "+lotType)
	}
	day := ts.UTC().Format("20060102")
	seq, err := g.source.Next(ctx, code+":"+day)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate lot sequence")
	}
	return fmt.Sprintf("%s-%s-%s-%04d", g.prefix, code, day, seq), nil
}

// MemorySequence is a process-local SequenceSource.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[string]int64)}
}

func (s *MemorySequence) Next(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}
