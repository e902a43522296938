package ledger

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"seedtrace/internal/audit"
	"seedtrace/internal/identity"
	"seedtrace/internal/ledger/metrics"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/tx"
	"seedtrace/pkg/requestcontext"
)

// Store appends and reads events. Append assigns Seq.
type Store interface {
	Append(ctx context.Context, event *Event) error
	ListBySubject(ctx context.Context, subjectID string) ([]*Event, error)
	ListBySubjects(ctx context.Context, subjectIDs []string) ([]*Event, error)
	Count(ctx context.Context) (int, error)
}

// SubjectResolver reports whether a lot or plant exists.
type SubjectResolver interface {
	SubjectExists(ctx context.Context, kind SubjectKind, id string) (bool, error)
}

// AuditLog records the audit counterpart of every event write.
type AuditLog interface {
	Append(ctx context.Context, entry audit.Entry) (*audit.Record, error)
}

// Service is the append-only event ledger.
type Service struct {
	store    Store
	subjects SubjectResolver
	audit    AuditLog
	tx       tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
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

// WithTxRunner makes the audit record and event insert commit together.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func NewService(store Store, subjects SubjectResolver, auditLog AuditLog, opts ...Option) *Service {
	s := &Service{
		store:    store,
		subjects: subjects,
		audit:    auditLog,
		tx:       tx.NoopRunner{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordEvent appends an event for an existing lot or plant. The audit
// record is written before the event in the same transaction.
func (s *Service) RecordEvent(ctx context.Context, req RecordEventRequest) (*Event, error) {
	if err := req.Validate(); err != nil {
		s.metrics.IncrementRejected("validation")
		return nil, err
	}
	kind, subjectID, _ := req.subject()

	exists, err := s.subjects.SubjectExists(ctx, kind, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve event subject")
	}
	if !exists {
		s.metrics.IncrementRejected("unknown_subject")
		return nil, dErrors.New(dErrors.CodeNotFound, string(kind)+" not found")
	}

	now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	ts := now
	if !req.Timestamp.IsZero() {
		ts = req.Timestamp.UTC().Truncate(time.Microsecond)
	}
	operator := req.Operator
	if operator == "" {
		operator = requestcontext.Actor(ctx).ID
	}

	event := &Event{
		ID:         identity.NewID(identity.KindEvent),
		LotID:      req.LotID,
		PlantID:    req.PlantID,
		EventType:  req.EventType,
		Timestamp:  ts,
		Operator:   operator,
		Location:   req.Location,
		Details:    maps.Clone(req.Details),
		Verified:   req.Verified,
		RecordedAt: now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.audit.Append(ctx, audit.Entry{
			EntityType: audit.EntityEvent,
			EntityID:   event.ID,
			Operation:  audit.OperationCreate,
			NewValue:   event,
		}); err != nil {
			return err
		}
		return s.store.Append(ctx, event)
	})
	if err != nil {
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
	}

	s.metrics.IncrementRecorded(string(kind), event.EventType)
	s.logger.DebugContext(ctx, "event recorded",
		"event_id", event.ID,
		"subject_id", subjectID,
		"event_type", event.EventType,
	)
	return event, nil
}

// History returns a subject's events ordered by timestamp, ties broken by
// insertion order.
func (s *Service) History(ctx context.Context, subjectID string) ([]*Event, error) {
	events, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read event history")
	}
	SortHistory(events)
	return events, nil
}

// MergedHistory returns the ordered union of several subjects' events.
func (s *Service) MergedHistory(ctx context.Context, subjectIDs []string) ([]*Event, error) {
	if len(subjectIDs) == 0 {
		return []*Event{}, nil
	}
	events, err := s.store.ListBySubjects(ctx, subjectIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read event history")
	}
	SortHistory(events)
	return events, nil
}

// Count returns the number of recorded events.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count events")
	}
	return n, nil
}
