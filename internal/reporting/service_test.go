package reporting_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"seedtrace/internal/audit"
	auditmemory "seedtrace/internal/audit/store/memory"
	"seedtrace/internal/compliance"
	"seedtrace/internal/identity"
	qrmemory "seedtrace/internal/identity/store/memory"
	"seedtrace/internal/ledger"
	"seedtrace/internal/ledger/adapters"
	ledgermemory "seedtrace/internal/ledger/store/memory"
	"seedtrace/internal/lifecycle"
	lifecyclememory "seedtrace/internal/lifecycle/store/memory"
	"seedtrace/internal/reporting"
	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/requestcontext"
)

type fixedResponseTimes time.Duration

func (f fixedResponseTimes) AverageResponseTime() time.Duration { return time.Duration(f) }

type ReportingSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	auditStore *auditmemory.InMemoryStore
	audit      *audit.Service
	ledger     *ledger.Service
	lifecycle  *lifecycle.Service
	service    *reporting.Service
}

func TestReportingSuite(t *testing.T) {
	suite.Run(t, new(ReportingSuite))
}

func (s *ReportingSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActor(s.ctx, requestcontext.ActorInfo{ID: "qa-lead", Role: "inspector"})

	lots := lifecyclememory.NewInMemoryStore()
	qr := identity.NewService(qrmemory.NewInMemoryStore(), "https://trace.example.org")
	s.auditStore = auditmemory.NewInMemoryStore()
	s.audit = audit.NewService(s.auditStore, "gacp-secret")
	s.ledger = ledger.NewService(ledgermemory.NewInMemoryStore(), adapters.NewLifecycleSubjects(lots), s.audit)
	s.lifecycle = lifecycle.NewService(lots, s.audit, s.ledger, qr,
		identity.NewLotNumbers("GACP", identity.NewMemorySequence()))
	s.service = reporting.NewService(s.lifecycle, s.ledger, s.audit, qr,
		compliance.NewEvaluator(compliance.DefaultRules()),
		reporting.WithResponseTimes(fixedResponseTimes(42*time.Millisecond)),
	)
}

// seedToPlant creates the GACP seed lot and its child plant lot and records
// the intake and planting events. It performs five audited writes.
func (s *ReportingSuite) seedToPlant() (*lifecycle.Lot, *lifecycle.Lot) {
	seed, err := s.lifecycle.CreateLot(s.ctx, lifecycle.CreateLotRequest{
		LotNumber: "GACP-SD-TEST-001",
		Type:      domain.LotTypeSeed,
		Species:   "Cannabis sativa",
		Variety:   "Hang Kra Rok",
		Quantity:  decimal.NewFromInt(100),
		Unit:      "seeds",
		Location:  domain.NewLocation("Seed vault, Chiang Mai", 18.79, 98.98),
		Metadata: map[string]string{
			lifecycle.MetaSource:        "Thai seed bank",
			lifecycle.MetaCertification: "GACP-CERT-2025-001",
		},
	})
	s.Require().NoError(err)

	plantLot, err := s.lifecycle.CreateLot(s.ctx, lifecycle.CreateLotRequest{
		LotNumber:   "GACP-PL-TEST-001",
		Type:        domain.LotTypePlant,
		Species:     "Cannabis sativa",
		Variety:     "Hang Kra Rok",
		Quantity:    decimal.NewFromInt(85),
		Unit:        "plants",
		Location:    domain.NewLocation("Greenhouse A", 18.80, 98.99),
		ParentLotID: seed.ID,
	})
	s.Require().NoError(err)

	events := []ledger.RecordEventRequest{
		{
			LotID:     seed.ID,
			EventType: ledger.EventSeedReceived,
			Timestamp: s.now.Add(time.Hour),
			Location:  domain.NewLocation("Seed vault, Chiang Mai", 18.79, 98.98),
			Details:   map[string]any{ledger.DetailQuantity: 100.0, ledger.DetailUnit: "seeds"},
		},
		{
			LotID:     seed.ID,
			EventType: ledger.EventSeedTested,
			Timestamp: s.now.Add(2 * time.Hour),
			Location:  domain.NewLocation("Lab, Lampang", 19.79, 98.98),
			Details:   map[string]any{ledger.DetailTestResult: ledger.TestResultPass, ledger.DetailLab: "Central Lab"},
		},
		{
			LotID:     plantLot.ID,
			EventType: ledger.EventPlanted,
			Timestamp: s.now.Add(24 * time.Hour),
			Location:  domain.NewLocation("Greenhouse A", 18.80, 98.99),
			Details:   map[string]any{ledger.DetailQuantity: 85.0},
		},
	}
	for _, req := range events {
		_, err := s.ledger.RecordEvent(s.ctx, req)
		s.Require().NoError(err)
	}
	return seed, plantLot
}

func (s *ReportingSuite) TestGACPSeedToPlantScenario() {
	_, plantLot := s.seedToPlant()

	records, err := s.audit.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, records)

	chain, err := s.audit.VerifyChain(s.ctx, 1, 5)
	s.Require().NoError(err)
	s.True(chain.Valid, chain.Message)
	s.Equal(5, chain.Checked)

	result, err := s.service.CheckCompliance(s.ctx, plantLot.ID)
	s.Require().NoError(err)
	s.Greater(result.Score, 80)
	s.True(result.Compliant)
	s.Empty(result.MissingRequirements)

	chain, err = s.audit.VerifyChain(s.ctx, 1, 0)
	s.Require().NoError(err)
	s.True(chain.Valid)
	s.Equal(6, chain.Checked)
}

func (s *ReportingSuite) TestCheckCompliance() {
	seed, plantLot := s.seedToPlant()

	s.Run("records a READ audit entry", func() {
		_, err := s.service.CheckCompliance(s.ctx, seed.ID)
		s.Require().NoError(err)

		trail, err := s.audit.Trail(s.ctx, audit.EntityLot, seed.ID, audit.TrailFilter{Operation: audit.OperationRead})
		s.Require().NoError(err)
		s.Require().Len(trail, 1)
		s.Equal("qa-lead", trail[0].ActorID)
		s.JSONEq(`{"check":"compliance","compliant":true,"score":80}`, string(trail[0].NewValue))
	})

	s.Run("plant inherits its lot's lineage", func() {
		plant, err := s.lifecycle.CreatePlant(s.ctx, lifecycle.CreatePlantRequest{
			LotID:    plantLot.ID,
			Location: domain.NewLocation("Greenhouse A", 18.80, 98.99),
		})
		s.Require().NoError(err)

		result, err := s.service.CheckCompliance(s.ctx, plant.ID)
		s.Require().NoError(err)
		s.Equal(compliance.KindPlant, result.SubjectKind)
		s.Equal(100, result.Score)
	})

	s.Run("failed quality test lowers the score", func() {
		_, err := s.ledger.RecordEvent(s.ctx, ledger.RecordEventRequest{
			LotID:     plantLot.ID,
			EventType: ledger.EventQualityTested,
			Location:  domain.NewLocation("Lab, Lampang", 19.79, 98.98),
			Details:   map[string]any{ledger.DetailTestResult: ledger.TestResultFail},
		})
		s.Require().NoError(err)

		result, err := s.service.CheckCompliance(s.ctx, plantLot.ID)
		s.Require().NoError(err)
		s.Equal(75, result.Score)
		s.True(result.Compliant)
	})

	s.Run("unknown subject", func() {
		_, err := s.service.CheckCompliance(s.ctx, "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReportingSuite) TestTrackingHistory() {
	seed, _ := s.seedToPlant()

	history, err := s.service.TrackingHistory(s.ctx, seed.ID)
	s.Require().NoError(err)
	s.Equal(compliance.KindLot, history.SubjectKind)
	s.Equal(2, history.TotalEvents)
	s.InDelta(111.32, history.TotalDistanceKm, 0.01)
	s.Require().Len(history.Timeline, 2)
	s.Equal(ledger.EventSeedReceived, history.Timeline[0].EventType)
	s.InDelta(3600.0, history.Metrics.TotalElapsedSeconds, 0.001)

	_, err = s.service.TrackingHistory(s.ctx, "nope")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ReportingSuite) TestSearchLotsPagination() {
	s.seedToPlant()
	later := requestcontext.WithTime(s.ctx, s.now.Add(time.Minute))
	_, err := s.lifecycle.CreateLot(later, lifecycle.CreateLotRequest{
		Type:     domain.LotTypeHarvest,
		Species:  "Cannabis sativa",
		Quantity: decimal.RequireFromString("12.5"),
		Unit:     "kg",
		Location: domain.Location{Name: "Drying room"},
	})
	s.Require().NoError(err)

	s.Run("splits into pages", func() {
		first, err := s.service.SearchLots(s.ctx, lifecycle.LotFilter{}, 1, 2)
		s.Require().NoError(err)
		s.Equal(3, first.Total)
		s.Equal(2, first.Pages)
		s.Len(first.Items, 2)
		s.Equal(domain.LotTypeHarvest, first.Items[0].Type)

		second, err := s.service.SearchLots(s.ctx, lifecycle.LotFilter{}, 2, 2)
		s.Require().NoError(err)
		s.Len(second.Items, 1)
	})

	s.Run("defaults and caps page size", func() {
		page, err := s.service.SearchLots(s.ctx, lifecycle.LotFilter{}, 1, 0)
		s.Require().NoError(err)
		s.Equal(20, page.PageSize)

		page, err = s.service.SearchLots(s.ctx, lifecycle.LotFilter{}, 1, 5000)
		s.Require().NoError(err)
		s.Equal(100, page.PageSize)
	})

	s.Run("filters by status", func() {
		page, err := s.service.SearchLots(s.ctx, lifecycle.LotFilter{Status: domain.LotStatusSold}, 1, 10)
		s.Require().NoError(err)
		s.Equal(0, page.Total)
		s.Equal(0, page.Pages)
		s.Empty(page.Items)
	})

	s.Run("page numbers start at one", func() {
		_, err := s.service.SearchLots(s.ctx, lifecycle.LotFilter{}, 0, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ReportingSuite) TestSummaryReport() {
	s.seedToPlant()

	s.Run("intact system", func() {
		summary, err := s.service.SummaryReport(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, summary.TotalLots)
		s.Equal(0, summary.TotalPlants)
		s.Equal(3, summary.TotalEvents)
		s.Equal(2, summary.TotalQRCodes)
		s.Equal(5, summary.AuditRecords)
		s.InDelta(90.0, summary.AverageComplianceScore, 0.001)
		s.Equal(2, summary.CompliantLots)
		s.InDelta(100.0, summary.AuditTrailIntegrity, 0.001)
		s.InDelta(42.0, summary.AverageResponseTimeMs, 0.001)
		s.Equal(reporting.StatusOperational, summary.SystemStatus)
		s.Equal(s.now, summary.GeneratedAt)
	})

	s.Run("tampered record degrades the system", func() {
		recs, err := s.auditStore.Range(s.ctx, 2, 3, 1)
		s.Require().NoError(err)
		s.Require().Len(recs, 1)
		tampered := recs[0]
		tampered.ActorID = "mallory"
		s.Require().True(s.auditStore.Overwrite(tampered))

		summary, err := s.service.SummaryReport(s.ctx)
		s.Require().NoError(err)
		s.Equal(reporting.StatusDegraded, summary.SystemStatus)
		s.Equal(int64(3), summary.AuditBrokenAtID)
		s.InDelta(40.0, summary.AuditTrailIntegrity, 0.001)
	})
}
