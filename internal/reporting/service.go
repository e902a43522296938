// Package reporting is the read side: lot search, tracking history,
// compliance checks and the system summary.
package reporting

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"seedtrace/internal/audit"
	"seedtrace/internal/compliance"
	"seedtrace/internal/ledger"
	"seedtrace/internal/lifecycle"
	"seedtrace/internal/reporting/metrics"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/requestcontext"
)

// Lifecycle is the lot and plant read surface.
type Lifecycle interface {
	GetLot(ctx context.Context, id string) (*lifecycle.Lot, error)
	GetPlant(ctx context.Context, id string) (*lifecycle.Plant, error)
	Lineage(ctx context.Context, lotID string) ([]*lifecycle.Lot, error)
	SearchLots(ctx context.Context, filter lifecycle.LotFilter, offset, limit int) ([]*lifecycle.Lot, int, error)
	Counts(ctx context.Context) (*lifecycle.Counts, error)
}

// Ledger is the event read surface.
type Ledger interface {
	History(ctx context.Context, subjectID string) ([]*ledger.Event, error)
	MergedHistory(ctx context.Context, subjectIDs []string) ([]*ledger.Event, error)
	Count(ctx context.Context) (int, error)
}

// AuditLog records compliance reads and verifies the chain for summaries.
type AuditLog interface {
	Append(ctx context.Context, entry audit.Entry) (*audit.Record, error)
	VerifyChain(ctx context.Context, startID, endID int64) (*audit.ChainVerification, error)
	Count(ctx context.Context) (int, error)
}

// QRCounter counts issued QR identities.
type QRCounter interface {
	Count(ctx context.Context) (int, error)
}

// ResponseTimes reports the recent average HTTP response time.
type ResponseTimes interface {
	AverageResponseTime() time.Duration
}

const (
	defaultPageSize = 20
	defaultMaxPage  = 100
	summaryLotBatch = 200
)

// Service is the reporting facade.
type Service struct {
	lifecycle   Lifecycle
	events      Ledger
	audit       AuditLog
	qr          QRCounter
	evaluator   *compliance.Evaluator
	times       ResponseTimes
	pageDefault int
	pageMax     int
	logger      *slog.Logger
	metrics     *metrics.Metrics
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

// WithPageSizes sets the default and maximum page size for lot searches.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(s *Service) {
		if defaultSize > 0 {
			s.pageDefault = defaultSize
		}
		if maxSize > 0 {
			s.pageMax = maxSize
		}
	}
}

func WithResponseTimes(times ResponseTimes) Option {
	return func(s *Service) {
		s.times = times
	}
}

func NewService(lc Lifecycle, events Ledger, auditLog AuditLog, qr QRCounter, evaluator *compliance.Evaluator, opts ...Option) *Service {
	s := &Service{
		lifecycle:   lc,
		events:      events,
		audit:       auditLog,
		qr:          qr,
		evaluator:   evaluator,
		pageDefault: defaultPageSize,
		pageMax:     defaultMaxPage,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pageDefault = min(s.pageDefault, s.pageMax)
	return s
}

// SearchLots returns page number page (1-based) of lots matching filter.
// A zero pageSize uses the default; larger sizes are capped.
func (s *Service) SearchLots(ctx context.Context, filter lifecycle.LotFilter, page, pageSize int) (*LotPage, error) {
	if page < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	if pageSize < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "page size must not be negative")
	}
	if pageSize == 0 {
		pageSize = s.pageDefault
	}
	pageSize = min(pageSize, s.pageMax)

	items, total, err := s.lifecycle.SearchLots(ctx, filter, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return &LotPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    (total + pageSize - 1) / pageSize,
	}, nil
}

// TrackingHistory returns the timeline and supply-chain metrics of a lot or
// plant.
func (s *Service) TrackingHistory(ctx context.Context, subjectID string) (*TrackingHistory, error) {
	kind, err := s.subjectKind(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.History(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	m := ledger.ComputeMetrics(events)
	return &TrackingHistory{
		SubjectID:       subjectID,
		SubjectKind:     kind,
		TotalEvents:     m.TotalEvents,
		TotalDistanceKm: m.DistanceKm,
		Timeline:        events,
		Metrics:         m,
	}, nil
}

// CheckCompliance scores a lot or plant and records the check as a READ
// audit entry.
func (s *Service) CheckCompliance(ctx context.Context, subjectID string) (*compliance.Result, error) {
	subject, err := s.complianceSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	result := s.evaluator.Evaluate(subject)

	if _, err := s.audit.Append(ctx, audit.Entry{
		EntityType: subject.Kind,
		EntityID:   subjectID,
		Operation:  audit.OperationRead,
		NewValue: map[string]any{
			"check":     "compliance",
			"score":     result.Score,
			"compliant": result.Compliant,
		},
	}); err != nil {
		return nil, err
	}

	s.metrics.ObserveCompliance(subject.Kind, result.Score, result.Compliant)
	s.logger.InfoContext(ctx, "compliance checked",
		"subject_id", subjectID,
		"subject_kind", subject.Kind,
		"score", result.Score,
		"compliant", result.Compliant,
	)
	return &result, nil
}

// SummaryReport aggregates counts, the average lot compliance score and a
// full audit chain verification.
func (s *Service) SummaryReport(ctx context.Context) (*Summary, error) {
	began := time.Now()
	summary := &Summary{GeneratedAt: requestcontext.Now(ctx).UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.lifecycle.Counts(gctx)
		if err != nil {
			return err
		}
		summary.TotalLots, summary.TotalPlants, summary.PlantsByStage = counts.Lots, counts.Plants, counts.PlantsByStage
		return nil
	})
	g.Go(func() error {
		n, err := s.events.Count(gctx)
		summary.TotalEvents = n
		return err
	})
	g.Go(func() error {
		n, err := s.qr.Count(gctx)
		summary.TotalQRCodes = n
		return err
	})
	g.Go(func() error {
		avg, compliant, err := s.averageCompliance(gctx)
		summary.AverageComplianceScore, summary.CompliantLots = avg, compliant
		return err
	})
	var verification *audit.ChainVerification
	g.Go(func() error {
		n, err := s.audit.Count(gctx)
		if err != nil {
			return err
		}
		summary.AuditRecords = n
		verification, err = s.audit.VerifyChain(gctx, 0, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.AuditTrailIntegrity = 100
	summary.SystemStatus = StatusOperational
	if !verification.Valid {
		summary.AuditBrokenAtID = verification.BrokenAtID
		summary.SystemStatus = StatusDegraded
		if summary.AuditRecords > 0 {
			summary.AuditTrailIntegrity = round1(float64(verification.Checked) / float64(summary.AuditRecords) * 100)
		}
	}
	if s.times != nil {
		summary.AverageResponseTimeMs = round1(float64(s.times.AverageResponseTime()) / float64(time.Millisecond))
	}

	s.metrics.ObserveSummary(time.Since(began).Seconds())
	return summary, nil
}

func (s *Service) averageCompliance(ctx context.Context) (float64, int, error) {
	var (
		total     int
		sum       int
		compliant int
	)
	for offset := 0; ; offset += summaryLotBatch {
		lots, count, err := s.lifecycle.SearchLots(ctx, lifecycle.LotFilter{}, offset, summaryLotBatch)
		if err != nil {
			return 0, 0, err
		}
		for _, lot := range lots {
			subject, err := s.lotSubject(ctx, lot)
			if err != nil {
				return 0, 0, err
			}
			result := s.evaluator.Evaluate(subject)
			sum += result.Score
			if result.Compliant {
				compliant++
			}
			total++
		}
		if len(lots) < summaryLotBatch || offset+len(lots) >= count {
			break
		}
	}
	if total == 0 {
		return 0, 0, nil
	}
	return round1(float64(sum) / float64(total)), compliant, nil
}

func (s *Service) subjectKind(ctx context.Context, id string) (string, error) {
	if _, err := s.lifecycle.GetLot(ctx, id); err == nil {
		return compliance.KindLot, nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return "", err
	}
	if _, err := s.lifecycle.GetPlant(ctx, id); err == nil {
		return compliance.KindPlant, nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return "", err
	}
	return "", dErrors.New(dErrors.CodeNotFound, "no lot or plant with id "+id)
}

func (s *Service) complianceSubject(ctx context.Context, id string) (compliance.Subject, error) {
	lot, err := s.lifecycle.GetLot(ctx, id)
	if err == nil {
		return s.lotSubject(ctx, lot)
	}
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return compliance.Subject{}, err
	}

	plant, err := s.lifecycle.GetPlant(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return compliance.Subject{}, dErrors.New(dErrors.CodeNotFound, "no lot or plant with id "+id)
		}
		return compliance.Subject{}, err
	}
	owner, err := s.lifecycle.GetLot(ctx, plant.LotID)
	if err != nil {
		return compliance.Subject{}, err
	}
	ownerSubject, err := s.lotSubject(ctx, owner)
	if err != nil {
		return compliance.Subject{}, err
	}
	events, err := s.events.History(ctx, plant.ID)
	if err != nil {
		return compliance.Subject{}, err
	}

	return compliance.Subject{
		ID:        plant.ID,
		Kind:      compliance.KindPlant,
		HasParent: true,
		Metadata:  ownerSubject.Metadata,
		Events:    append(toComplianceEvents(events), ownerSubject.Events...),
	}, nil
}

// lotSubject gathers a lot's metadata and events together with those of its
// ancestors.
func (s *Service) lotSubject(ctx context.Context, lot *lifecycle.Lot) (compliance.Subject, error) {
	ancestors, err := s.lifecycle.Lineage(ctx, lot.ID)
	if err != nil {
		return compliance.Subject{}, err
	}
	ids := make([]string, 0, len(ancestors)+1)
	metadata := make([]map[string]string, 0, len(ancestors)+1)
	ids = append(ids, lot.ID)
	metadata = append(metadata, lot.Metadata)
	for _, a := range ancestors {
		ids = append(ids, a.ID)
		metadata = append(metadata, a.Metadata)
	}
	events, err := s.events.MergedHistory(ctx, ids)
	if err != nil {
		return compliance.Subject{}, err
	}
	return compliance.Subject{
		ID:        lot.ID,
		Kind:      compliance.KindLot,
		LotType:   string(lot.Type),
		HasParent: lot.ParentLotID != "",
		Metadata:  metadata,
		Events:    toComplianceEvents(events),
	}, nil
}

func toComplianceEvents(events []*ledger.Event) []compliance.Event {
	out := make([]compliance.Event, 0, len(events))
	for _, e := range events {
		out = append(out, compliance.Event{
			Type:           e.EventType,
			HasLocation:    e.Location.Name != "",
			HasCoordinates: e.Location.HasCoordinates(),
			Details:        e.Details,
		})
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
