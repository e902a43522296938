package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"seedtrace/internal/audit"
	auditmemory "seedtrace/internal/audit/store/memory"
	"seedtrace/internal/ledger"
	"seedtrace/internal/ledger/store/memory"
	"seedtrace/pkg/domain"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/requestcontext"
)

type staticSubjects map[ledger.SubjectKind]map[string]bool

func (s staticSubjects) SubjectExists(_ context.Context, kind ledger.SubjectKind, id string) (bool, error) {
	return s[kind][id], nil
}

type LedgerServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	audit   *audit.Service
	service *ledger.Service
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActor(s.ctx, requestcontext.ActorInfo{ID: "grower-1", Role: "operator"})
	s.audit = audit.NewService(auditmemory.NewInMemoryStore(), "secret")
	subjects := staticSubjects{
		ledger.SubjectLot:   {"lot-1": true},
		ledger.SubjectPlant: {"plant-1": true},
	}
	s.service = ledger.NewService(memory.NewInMemoryStore(), subjects, s.audit)
}

func (s *LedgerServiceSuite) TestRecordEvent() {
	s.Run("defaults timestamp and operator", func() {
		event, err := s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{
			LotID:     "lot-1",
			EventType: ledger.EventSeedReceived,
			Location:  domain.NewLocation("Chiang Mai", 18.79, 98.98),
			Details:   map[string]any{ledger.DetailQuantity: 100.0, "supplier_ref": "INV-77"},
		})
		s.Require().NoError(err)
		s.NotEmpty(event.ID)
		s.Equal(s.now, event.Timestamp)
		s.Equal("grower-1", event.Operator)
		s.Equal(ledger.SubjectLot, event.SubjectKind())
		s.Positive(event.Seq)
	})

	s.Run("writes an audit record for the event", func() {
		event, err := s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{PlantID: "plant-1", EventType: ledger.EventWatered})
		s.Require().NoError(err)
		trail, err := s.audit.Trail(s.ctx, audit.EntityEvent, event.ID, audit.TrailFilter{})
		s.Require().NoError(err)
		s.Require().Len(trail, 1)
		s.Equal(audit.OperationCreate, trail[0].Operation)
		s.Contains(string(trail[0].NewValue), `"event_type":"WATERED"`)
	})

	s.Run("requires exactly one subject", func() {
		_, err := s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{EventType: ledger.EventWatered})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{LotID: "lot-1", PlantID: "plant-1", EventType: ledger.EventWatered})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown subject is not found and leaves no audit record", func() {
		before, err := s.audit.Count(s.ctx)
		s.Require().NoError(err)
		_, err = s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{LotID: "lot-404", EventType: ledger.EventShipped})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		after, err := s.audit.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})

	s.Run("validates event type and details", func() {
		cases := []ledger.RecordEventRequest{
			{LotID: "lot-1", EventType: "watered"},
			{LotID: "lot-1", EventType: ledger.EventQualityTested, Details: map[string]any{ledger.DetailTestResult: "maybe"}},
			{LotID: "lot-1", EventType: ledger.EventQualityTested, Details: map[string]any{ledger.DetailPesticideResidue: "yes"}},
			{LotID: "lot-1", EventType: ledger.EventInspected, Details: map[string]any{ledger.DetailHumidityPct: 120.0}},
			{LotID: "lot-1", EventType: ledger.EventInspected, Details: map[string]any{"Bad Key": 1}},
			{LotID: "lot-1", EventType: ledger.EventLifecycleChanged, Details: map[string]any{ledger.DetailToStage: "dormant"}},
			{LotID: "lot-1", EventType: ledger.EventShipped, Location: domain.Location{Name: "x", Latitude: new(float64)}},
		}
		for _, req := range cases {
			_, err := s.service.RecordEvent(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "%+v", req)
		}
	})
}

func (s *LedgerServiceSuite) TestHistoryOrdering() {
	at := func(h int) time.Time { return s.now.Add(time.Duration(h) * time.Hour) }
	for _, rec := range []struct {
		eventType string
		ts        time.Time
	}{
		{ledger.EventHarvested, at(5)},
		{ledger.EventPlanted, at(1)},
		{ledger.EventWatered, at(3)},
		{ledger.EventInspected, at(3)},
	} {
		_, err := s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{PlantID: "plant-1", EventType: rec.eventType, Timestamp: rec.ts})
		s.Require().NoError(err)
	}

	first, err := s.service.History(s.ctx, "plant-1")
	s.Require().NoError(err)
	types := make([]string, 0, len(first))
	for _, e := range first {
		types = append(types, e.EventType)
	}
	s.Equal([]string{ledger.EventPlanted, ledger.EventWatered, ledger.EventInspected, ledger.EventHarvested}, types)

	second, err := s.service.History(s.ctx, "plant-1")
	s.Require().NoError(err)
	s.Equal(first, second)

	empty, err := s.service.History(s.ctx, "lot-1")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *LedgerServiceSuite) TestMergedHistory() {
	_, err := s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{LotID: "lot-1", EventType: ledger.EventSeedReceived, Timestamp: s.now.Add(-time.Hour)})
	s.Require().NoError(err)
	_, err = s.service.RecordEvent(s.ctx, ledger.RecordEventRequest{PlantID: "plant-1", EventType: ledger.EventPlanted})
	s.Require().NoError(err)

	events, err := s.service.MergedHistory(s.ctx, []string{"plant-1", "lot-1", "lot-1"})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(ledger.EventSeedReceived, events[0].EventType)

	n, err := s.service.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}
