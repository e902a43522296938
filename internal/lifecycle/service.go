package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"seedtrace/internal/audit"
	"seedtrace/internal/identity"
	"seedtrace/internal/ledger"
	"seedtrace/internal/lifecycle/metrics"
	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/platform/sentinel"
	"seedtrace/pkg/platform/tx"
	"seedtrace/pkg/requestcontext"
)

// maxLineageDepth bounds ancestor walks. Deeper chains are treated as
// corrupt lineage.
const maxLineageDepth = 32

// maxLotNumberAttempts is how often a generated lot number is retried after
// colliding with an existing one.
const maxLotNumberAttempts = 3

// Store persists lots and plants. Update methods compare the stored version
// with expectedVersion and fail with sentinel.ErrStaleVersion on mismatch.
type Store interface {
	CreateLot(ctx context.Context, lot *Lot) error
	FindLot(ctx context.Context, id string) (*Lot, error)
	FindLotByNumber(ctx context.Context, lotNumber string) (*Lot, error)
	UpdateLot(ctx context.Context, lot *Lot, expectedVersion int64) error
	SearchLots(ctx context.Context, filter LotFilter, offset, limit int) ([]*Lot, int, error)
	CountLots(ctx context.Context) (int, error)

	CreatePlant(ctx context.Context, plant *Plant) error
	FindPlant(ctx context.Context, id string) (*Plant, error)
	UpdatePlant(ctx context.Context, plant *Plant, expectedVersion int64) error
	ListPlantsByLot(ctx context.Context, lotID string) ([]*Plant, error)
	CountPlants(ctx context.Context) (int, error)
	CountPlantsByStage(ctx context.Context) (map[domain.LifecycleStage]int, error)
}

// AuditLog records every lifecycle mutation.
type AuditLog interface {
	Append(ctx context.Context, entry audit.Entry) (*audit.Record, error)
}

// EventRecorder appends the implicit lifecycle-change events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, req ledger.RecordEventRequest) (*ledger.Event, error)
}

// QREncoder issues QR identities for new lots and plants.
type QREncoder interface {
	Encode(ctx context.Context, entityType, entityID, lotNumber string, metadata map[string]string) (*identity.QRIdentity, error)
}

// LotNumberer generates lot numbers.
type LotNumberer interface {
	Next(ctx context.Context, lotType string, ts time.Time) (string, error)
}

// Service owns the lot and plant graph.
type Service struct {
	store      Store
	audit      AuditLog
	events     EventRecorder
	qr         QREncoder
	lotNumbers LotNumberer
	tx         tx.Runner
	locks      entityLocks
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

// WithLockTimeout bounds how long a single lot or plant mutation may run.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.locks.timeout = d
		}
	}
}

func NewService(store Store, auditLog AuditLog, events EventRecorder, qr QREncoder, lotNumbers LotNumberer, opts ...Option) *Service {
	s := &Service{
		store:      store,
		audit:      auditLog,
		events:     events,
		qr:         qr,
		lotNumbers: lotNumbers,
		tx:         tx.NoopRunner{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLot validates and persists a new lot together with its QR identity
// and CREATE audit record.
func (s *Service) CreateLot(ctx context.Context, req CreateLotRequest) (*Lot, error) {
	return traced(ctx, "lifecycle.CreateLot", func(ctx context.Context) (*Lot, error) {
		return s.newLot(ctx, req)
	}, attribute.String("lot.type", string(req.Type)))
}

func (s *Service) newLot(ctx context.Context, req CreateLotRequest) (*Lot, error) {
	if err := req.Validate(); err != nil {
		s.metrics.IncrementRejected(audit.EntityLot, "validation")
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)

	if req.ParentLotID != "" {
		parent, err := s.findLot(ctx, req.ParentLotID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				s.metrics.IncrementRejected(audit.EntityLot, "unknown_parent")
				return nil, dErrors.New(dErrors.CodeNotFound, "parent lot not found")
			}
			return nil, err
		}
		if parent.CreatedAt.After(now) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "parent lot is newer than child")
		}
		if _, err := s.ancestors(ctx, parent); err != nil {
			return nil, err
		}
	}

	attempts := 1
	if req.LotNumber == "" {
		attempts = maxLotNumberAttempts
	}
	for attempt := 1; ; attempt++ {
		lot, err := s.createLot(ctx, req, now)
		if err == nil {
			s.metrics.IncrementLotsCreated(string(lot.Type))
			s.logger.InfoContext(ctx, "lot created",
				"lot_id", lot.ID,
				"lot_number", lot.LotNumber,
				"type", lot.Type,
				"parent_lot_id", lot.ParentLotID,
			)
			return lot, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, err
		}
		if attempt >= attempts {
			s.metrics.IncrementRejected(audit.EntityLot, "duplicate_lot_number")
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "lot number already in use")
		}
	}
}

func (s *Service) createLot(ctx context.Context, req CreateLotRequest, now time.Time) (*Lot, error) {
	number := req.LotNumber
	if number == "" {
		var err error
		if number, err = s.lotNumbers.Next(ctx, string(req.Type), now); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.FindLotByNumber(ctx, number); err == nil {
		return nil, sentinel.ErrAlreadyUsed
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lot number")
	}

	lot := &Lot{
		ID:          identity.NewID(identity.KindLot),
		LotNumber:   number,
		Type:        req.Type,
		Species:     req.Species,
		Variety:     req.Variety,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Location:    req.Location,
		ParentLotID: req.ParentLotID,
		Metadata:    maps.Clone(req.Metadata),
		Status:      domain.LotStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		qr, err := s.qr.Encode(ctx, audit.EntityLot, lot.ID, lot.LotNumber, map[string]string{
			"type":    string(lot.Type),
			"species": lot.Species,
		})
		if err != nil {
			return err
		}
		lot.QRID = qr.ID
		if _, err := s.audit.Append(ctx, audit.Entry{
			EntityType: audit.EntityLot,
			EntityID:   lot.ID,
			Operation:  audit.OperationCreate,
			NewValue:   lot,
		}); err != nil {
			return err
		}
		return s.store.CreateLot(ctx, lot)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, err
		}
		return nil, wrapInternal(err, "failed to create lot")
	}
	return lot, nil
}

// CreatePlant registers a plant in an open lot. The plant starts in the
// first lifecycle stage.
func (s *Service) CreatePlant(ctx context.Context, req CreatePlantRequest) (*Plant, error) {
	return traced(ctx, "lifecycle.CreatePlant", func(ctx context.Context) (*Plant, error) {
		return s.newPlant(ctx, req)
	}, attribute.String("lot.id", req.LotID))
}

func (s *Service) newPlant(ctx context.Context, req CreatePlantRequest) (*Plant, error) {
	if err := req.Validate(); err != nil {
		s.metrics.IncrementRejected(audit.EntityPlant, "validation")
		return nil, err
	}
	lot, err := s.findLot(ctx, req.LotID)
	if err != nil {
		return nil, err
	}
	if lot.Status.IsTerminal() {
		s.metrics.IncrementRejected(audit.EntityPlant, "closed_lot")
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "lot is "+string(lot.Status))
	}

	now := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	plant := &Plant{
		ID:        identity.NewID(identity.KindPlant),
		Tag:       req.Tag,
		LotID:     lot.ID,
		Species:   req.Species,
		Variety:   req.Variety,
		Location:  req.Location,
		Stage:     domain.InitialStage(),
		PlantedAt: now,
		Operator:  req.Operator,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if plant.Tag == "" {
		plant.Tag = identity.NewPlantTag(now)
	}
	if plant.Species == "" {
		plant.Species = lot.Species
	}
	if plant.Variety == "" {
		plant.Variety = lot.Variety
	}
	if !req.PlantedAt.IsZero() {
		plant.PlantedAt = req.PlantedAt.UTC().Truncate(time.Microsecond)
	}
	if plant.Operator == "" {
		plant.Operator = requestcontext.Actor(ctx).ID
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		qr, err := s.qr.Encode(ctx, audit.EntityPlant, plant.ID, lot.LotNumber, map[string]string{
			"tag":     plant.Tag,
			"species": plant.Species,
		})
		if err != nil {
			return err
		}
		plant.QRID = qr.ID
		if _, err := s.audit.Append(ctx, audit.Entry{
			EntityType: audit.EntityPlant,
			EntityID:   plant.ID,
			Operation:  audit.OperationCreate,
			NewValue:   plant,
		}); err != nil {
			return err
		}
		return s.store.CreatePlant(ctx, plant)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.metrics.IncrementRejected(audit.EntityPlant, "duplicate_tag")
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "plant tag already in use")
		}
		return nil, wrapInternal(err, "failed to create plant")
	}

	s.metrics.IncrementPlantsCreated()
	s.logger.InfoContext(ctx, "plant created",
		"plant_id", plant.ID,
		"tag", plant.Tag,
		"lot_id", plant.LotID,
	)
	return plant, nil
}

// UpdatePlantLifecycle advances a plant to a strictly later stage and
// records the change as a LIFECYCLE_CHANGED event.
func (s *Service) UpdatePlantLifecycle(ctx context.Context, plantID string, stage domain.LifecycleStage, sc StageContext) (*Plant, error) {
	return traced(ctx, "lifecycle.UpdatePlantLifecycle", func(ctx context.Context) (*Plant, error) {
		return s.advancePlant(ctx, plantID, stage, sc)
	}, attribute.String("plant.id", plantID), attribute.String("plant.stage", string(stage)))
}

func (s *Service) advancePlant(ctx context.Context, plantID string, stage domain.LifecycleStage, sc StageContext) (*Plant, error) {
	if _, err := domain.ParseLifecycleStage(string(stage)); err != nil {
		s.metrics.IncrementRejected(audit.EntityPlant, "validation")
		return nil, err
	}
	if sc.Location != nil {
		if err := sc.Location.Validate(); err != nil {
			return nil, err
		}
	}

	var updated *Plant
	err := s.locks.withLock(ctx, plantID, func(ctx context.Context) error {
		current, err := s.findPlant(ctx, plantID)
		if err != nil {
			return err
		}
		if !stage.IsAfter(current.Stage) {
			s.metrics.IncrementRejected(audit.EntityPlant, "backward_stage")
			return dErrors.New(dErrors.CodeInvalidTransition,
				"cannot move plant from "+string(current.Stage)+" to "+string(stage))
		}

		next := *current
		next.Stage = stage
		if sc.Location != nil {
			next.Location = *sc.Location
		}
		next.UpdatedAt = requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
		next.Version = current.Version + 1

		details := map[string]any{
			ledger.DetailFromStage: string(current.Stage),
			ledger.DetailToStage:   string(stage),
		}
		if sc.Notes != "" {
			details[ledger.DetailNotes] = sc.Notes
		}

		event := ledger.RecordEventRequest{
			PlantID:   plantID,
			EventType: ledger.EventLifecycleChanged,
			Timestamp: sc.Timestamp,
			Operator:  sc.Operator,
			Location:  next.Location,
			Details:   details,
		}
		// Rejected events must not leave the stage or audit trail advanced.
		if err := event.Validate(); err != nil {
			s.metrics.IncrementRejected(audit.EntityPlant, "validation")
			return err
		}

		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.audit.Append(ctx, audit.Entry{
				EntityType: audit.EntityPlant,
				EntityID:   plantID,
				Operation:  audit.OperationUpdate,
				OldValue:   current,
				NewValue:   &next,
			}); err != nil {
				return err
			}
			if err := s.store.UpdatePlant(ctx, &next, current.Version); err != nil {
				return err
			}
			_, err := s.events.RecordEvent(ctx, event)
			return err
		})
		if err != nil {
			return s.translateWriteErr(err, "failed to update plant lifecycle")
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementStageTransition(string(stage))
	s.logger.InfoContext(ctx, "plant lifecycle advanced",
		"plant_id", plantID,
		"stage", stage,
	)
	return updated, nil
}

// UpdateLot changes quantity, status, location or metadata of a lot.
// Status follows the lot status transitions; terminal lots only accept
// metadata changes.
func (s *Service) UpdateLot(ctx context.Context, lotID string, update LotUpdate) (*Lot, error) {
	return traced(ctx, "lifecycle.UpdateLot", func(ctx context.Context) (*Lot, error) {
		return s.changeLot(ctx, lotID, update)
	}, attribute.String("lot.id", lotID))
}

func (s *Service) changeLot(ctx context.Context, lotID string, update LotUpdate) (*Lot, error) {
	if update.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "update has no changes")
	}
	if update.Quantity != nil && update.Quantity.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "quantity must not be negative")
	}
	if update.Status != nil {
		if _, err := domain.ParseLotStatus(string(*update.Status)); err != nil {
			return nil, err
		}
	}
	if update.Location != nil {
		if err := update.Location.Validate(); err != nil {
			return nil, err
		}
	}
	if err := ValidateMetadata(update.Metadata); err != nil {
		return nil, err
	}

	var updated *Lot
	err := s.locks.withLock(ctx, lotID, func(ctx context.Context) error {
		current, err := s.findLot(ctx, lotID)
		if err != nil {
			return err
		}

		next := *current
		next.Metadata = maps.Clone(current.Metadata)
		if update.Status != nil && *update.Status != current.Status {
			if !current.Status.CanTransitionTo(*update.Status) {
				s.metrics.IncrementRejected(audit.EntityLot, "invalid_status")
				return dErrors.New(dErrors.CodeInvalidTransition,
					"cannot move lot from "+string(current.Status)+" to "+string(*update.Status))
			}
			next.Status = *update.Status
		}
		if current.Status.IsTerminal() && (update.Quantity != nil || update.Location != nil) {
			return dErrors.New(dErrors.CodeInvalidTransition, "lot is "+string(current.Status))
		}
		if update.Quantity != nil {
			next.Quantity = *update.Quantity
		}
		if update.Location != nil {
			next.Location = *update.Location
		}
		if len(update.Metadata) > 0 {
			if next.Metadata == nil {
				next.Metadata = make(map[string]string, len(update.Metadata))
			}
			maps.Copy(next.Metadata, update.Metadata)
		}
		next.UpdatedAt = requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
		next.Version = current.Version + 1

		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.audit.Append(ctx, audit.Entry{
				EntityType: audit.EntityLot,
				EntityID:   lotID,
				Operation:  audit.OperationUpdate,
				OldValue:   current,
				NewValue:   &next,
			}); err != nil {
				return err
			}
			return s.store.UpdateLot(ctx, &next, current.Version)
		})
		if err != nil {
			return s.translateWriteErr(err, "failed to update lot")
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "lot updated", "lot_id", lotID, "status", updated.Status)
	return updated, nil
}

// GetLot returns a lot by id.
func (s *Service) GetLot(ctx context.Context, id string) (*Lot, error) {
	return s.findLot(ctx, id)
}

// GetPlant returns a plant by id.
func (s *Service) GetPlant(ctx context.Context, id string) (*Plant, error) {
	return s.findPlant(ctx, id)
}

// Lineage returns the ancestors of a lot, nearest parent first.
func (s *Service) Lineage(ctx context.Context, lotID string) ([]*Lot, error) {
	lot, err := s.findLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return s.ancestors(ctx, lot)
}

// ancestors walks parent links from lot upward. Missing parents, cycles and
// chains deeper than maxLineageDepth are lineage corruption.
func (s *Service) ancestors(ctx context.Context, lot *Lot) ([]*Lot, error) {
	chain := []*Lot{}
	seen := map[string]bool{lot.ID: true}
	current := lot
	for current.ParentLotID != "" {
		if len(chain) >= maxLineageDepth {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "lot lineage too deep")
		}
		if seen[current.ParentLotID] {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "lot lineage contains a cycle")
		}
		parent, err := s.findLot(ctx, current.ParentLotID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.New(dErrors.CodeInvariantViolation, "lot lineage references a missing lot")
			}
			return nil, err
		}
		if parent.CreatedAt.After(current.CreatedAt) {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "lot lineage is not ordered by creation time")
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// ListPlantsByLot returns the plants of a lot in planting order.
func (s *Service) ListPlantsByLot(ctx context.Context, lotID string) ([]*Plant, error) {
	if _, err := s.findLot(ctx, lotID); err != nil {
		return nil, err
	}
	plants, err := s.store.ListPlantsByLot(ctx, lotID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list plants")
	}
	return plants, nil
}

// SearchLots returns one page of lots matching filter, newest first, and
// the total number of matches.
func (s *Service) SearchLots(ctx context.Context, filter LotFilter, offset, limit int) ([]*Lot, int, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "invalid page bounds")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "invalid lot status: "+string(filter.Status))
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "invalid lot type: "+string(filter.Type))
	}
	if !filter.CreatedFrom.IsZero() && !filter.CreatedTo.IsZero() && !filter.CreatedTo.After(filter.CreatedFrom) {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "date range end must be after start")
	}
	lots, total, err := s.store.SearchLots(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search lots")
	}
	return lots, total, nil
}

// Counts summarizes the entity graph.
type Counts struct {
	Lots          int                           `json:"lots"`
	Plants        int                           `json:"plants"`
	PlantsByStage map[domain.LifecycleStage]int `json:"plants_by_stage"`
}

func (s *Service) Counts(ctx context.Context) (*Counts, error) {
	lots, err := s.store.CountLots(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count lots")
	}
	plants, err := s.store.CountPlants(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count plants")
	}
	byStage, err := s.store.CountPlantsByStage(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count plants by stage")
	}
	return &Counts{Lots: lots, Plants: plants, PlantsByStage: byStage}, nil
}

func (s *Service) findLot(ctx context.Context, id string) (*Lot, error) {
	lot, err := s.store.FindLot(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "lot not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lot")
	}
	return lot, nil
}

func (s *Service) findPlant(ctx context.Context, id string) (*Plant, error) {
	plant, err := s.store.FindPlant(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "plant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load plant")
	}
	return plant, nil
}

func (s *Service) translateWriteErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrStaleVersion):
		s.metrics.IncrementWriteConflict()
		return dErrors.Wrap(err, dErrors.CodeConcurrentWrite, "entity was modified concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "entity not found")
	default:
		return wrapInternal(err, msg)
	}
}

// wrapInternal keeps coded errors from collaborators and codes the rest as
// internal.
func wrapInternal(err error, msg string) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
