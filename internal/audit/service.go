package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"seedtrace/internal/audit/metrics"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/jsonutil"
	"seedtrace/pkg/platform/sentinel"
	"seedtrace/pkg/requestcontext"
)

var tracer = otel.Tracer("seedtrace.audit")

// Store persists the chain. Append must hold the store's serialization
// boundary from reading the last record until the new one is durable, so
// that two appends never observe the same predecessor.
type Store interface {
	// Append passes the signature of the current last record ("" for an empty
	// log) to build and persists the returned record, assigning its ID.
	Append(ctx context.Context, build func(prevSignature string) (*Record, error)) (*Record, error)
	// Previous returns the record with the greatest id below id, or
	// sentinel.ErrNotFound.
	Previous(ctx context.Context, id int64) (*Record, error)
	// Range returns up to limit records with afterID < id <= endID in id
	// order. endID <= 0 means no upper bound.
	Range(ctx context.Context, afterID, endID int64, limit int) ([]*Record, error)
	LastID(ctx context.Context) (int64, error)
	ListByEntity(ctx context.Context, entityType, entityID string, filter TrailFilter) ([]*Record, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*Record, error)
	Count(ctx context.Context) (int, error)
}

const defaultVerifyBatch = 500

// Service appends to and verifies the hash-chained audit log.
type Service struct {
	store     Store
	secret    string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	batchSize int
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithVerifyBatchSize sets how many records VerifyChain loads per query.
func WithVerifyBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewService(store Store, secret string, opts ...Option) *Service {
	s := &Service{
		store:     store,
		secret:    secret,
		logger:    slog.Default(),
		batchSize: defaultVerifyBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append signs entry and links it to the current end of the chain. When ctx
// carries a transaction the record commits or rolls back with it.
func (s *Service) Append(ctx context.Context, entry Entry) (*Record, error) {
	if entry.EntityType == "" || entry.EntityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "audit entry requires entity type and id")
	}
	if !entry.Operation.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid audit operation: "+string(entry.Operation))
	}
	if entry.ActorID == "" {
		actor := requestcontext.Actor(ctx)
		entry.ActorID, entry.ActorRole = actor.ID, actor.Role
	}

	ctx, span := tracer.Start(ctx, "audit.Append", trace.WithAttributes(
		attribute.String("audit.entity_type", entry.EntityType),
		attribute.String("audit.operation", string(entry.Operation)),
	))
	defer span.End()

	oldValue, err := snapshot(entry.OldValue)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "old value is not serializable")
	}
	newValue, err := snapshot(entry.NewValue)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "new value is not serializable")
	}

	start := time.Now()
	// Postgres stores timestamps with microsecond precision; truncating here
	// keeps the signed text identical after a round trip.
	ts := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)

	rec, err := s.store.Append(ctx, func(prevSignature string) (*Record, error) {
		r := &Record{
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Operation:  entry.Operation,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Timestamp:  ts,
			OldValue:   oldValue,
			NewValue:   newValue,
		}
		sig, err := Sign(r, s.secret)
		if err != nil {
			return nil, err
		}
		r.Signature = sig
		r.ChainHash = ChainHash(prevSignature, sig)
		return r, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "audit append cancelled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
	}

	s.metrics.ObserveAppend(time.Since(start))
	s.metrics.IncrementAppend(rec.EntityType, string(rec.Operation))
	span.SetAttributes(attribute.Int64("audit.record_id", rec.ID))
	return rec, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		return jsonutil.Canonicalize(raw)
	}
	return jsonutil.CanonicalMarshal(v)
}

// VerifyChain walks records with startID <= id <= endID in ascending order.
// startID <= 0 starts at the beginning of the log and endID <= 0 runs to its
// end. The first record in range is checked against its stored predecessor,
// so any sub-range verifies on its own.
//
// A broken chain is reported in the result; the error is reserved for
// storage failures.
func (s *Service) VerifyChain(ctx context.Context, startID, endID int64) (*ChainVerification, error) {
	if startID > 0 && endID > 0 && endID < startID {
		return nil, dErrors.New(dErrors.CodeValidation, "end id must not be below start id")
	}
	ctx, span := tracer.Start(ctx, "audit.VerifyChain", trace.WithAttributes(
		attribute.Int64("audit.start_id", startID),
		attribute.Int64("audit.end_id", endID),
	))
	defer span.End()

	began := time.Now()
	result := &ChainVerification{Valid: true, StartID: startID, EndID: endID}

	afterID := int64(0)
	prevSignature := ""
	if startID > 1 {
		afterID = startID - 1
		prev, err := s.store.Previous(ctx, startID)
		switch {
		case err == nil:
			prevSignature = prev.Signature
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return nil, s.storageError(span, err)
		}
	}

	for {
		batch, err := s.store.Range(ctx, afterID, endID, s.batchSize)
		if err != nil {
			return nil, s.storageError(span, err)
		}
		for _, rec := range batch {
			if reason := s.checkLink(rec, prevSignature); reason != "" {
				result.Valid = false
				result.BrokenAtID = rec.ID
				result.Message = reason
				s.finishVerify(span, result, began)
				return result, nil
			}
			prevSignature = rec.Signature
			afterID = rec.ID
			result.Checked++
		}
		if len(batch) < s.batchSize {
			break
		}
	}

	if result.Checked == 0 {
		result.Message = "no audit records in range"
	} else {
		result.Message = "audit chain intact"
	}
	s.finishVerify(span, result, began)
	return result, nil
}

func (s *Service) checkLink(rec *Record, prevSignature string) string {
	expected, err := Sign(rec, s.secret)
	if err != nil {
		return "record payload cannot be re-encoded"
	}
	if expected != rec.Signature {
		return "signature does not match record contents"
	}
	if ChainHash(prevSignature, rec.Signature) != rec.ChainHash {
		return "chain hash does not link to previous record"
	}
	return ""
}

func (s *Service) finishVerify(span trace.Span, result *ChainVerification, began time.Time) {
	s.metrics.ObserveVerify(time.Since(began), result.Checked, result.Valid)
	span.SetAttributes(
		attribute.Bool("audit.valid", result.Valid),
		attribute.Int("audit.checked", result.Checked),
	)
	if !result.Valid {
		span.SetStatus(codes.Error, result.Message)
		s.logger.Warn("audit chain verification failed",
			"record_id", result.BrokenAtID,
			"reason", result.Message,
		)
	}
}

func (s *Service) storageError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "storage error")
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit log")
}

// Trail returns the records for one entity, newest first.
func (s *Service) Trail(ctx context.Context, entityType, entityID string, filter TrailFilter) ([]*Record, error) {
	if entityType == "" || entityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "entity type and id are required")
	}
	if filter.Operation != "" && !filter.Operation.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid operation filter: "+string(filter.Operation))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, dErrors.New(dErrors.CodeValidation, "date range end precedes start")
	}
	records, err := s.store.ListByEntity(ctx, entityType, entityID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail")
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID > records[j].ID
		}
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// Report aggregates records with from <= timestamp < to.
func (s *Service) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, dErrors.New(dErrors.CodeValidation, "report requires from before to")
	}
	records, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit log")
	}
	return buildReport(from, to, records), nil
}

func buildReport(from, to time.Time, records []*Record) *Report {
	report := &Report{
		From:         from,
		To:           to,
		Total:        len(records),
		ByEntityType: make(map[string]int),
		ByOperation:  make(map[Operation]int),
		ByActor:      make(map[string]int),
		Rows:         []ReportRow{},
	}
	type rowKey struct {
		entityType string
		operation  Operation
		day        string
	}
	rows := make(map[rowKey]int)
	for _, r := range records {
		report.ByEntityType[r.EntityType]++
		report.ByOperation[r.Operation]++
		report.ByActor[r.ActorID]++
		rows[rowKey{r.EntityType, r.Operation, r.Timestamp.UTC().Format(time.DateOnly)}]++
	}
	for k, n := range rows {
		report.Rows = append(report.Rows, ReportRow{EntityType: k.entityType, Operation: k.operation, Day: k.day, Count: n})
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		return a.Operation < b.Operation
	})
	return report
}

// Count returns the number of records in the log.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit records")
	}
	return n, nil
}
