package audit_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"seedtrace/internal/audit"
	"seedtrace/internal/audit/store/memory"
	dErrors "seedtrace/pkg/domain-errors"
	"seedtrace/pkg/requestcontext"
)

type AuditServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.InMemoryStore
	service *audit.Service
	now     time.Time
}

func TestAuditServiceSuite(t *testing.T) {
	suite.Run(t, new(AuditServiceSuite))
}

func (s *AuditServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{ID: "inspector-7", Role: "inspector"})
	s.ctx = requestcontext.WithTime(s.ctx, s.now)
	s.store = memory.NewInMemoryStore()
	s.service = audit.NewService(s.store, "test-secret")
}

func (s *AuditServiceSuite) appendN(n int) []*audit.Record {
	records := make([]*audit.Record, 0, n)
	for i := 0; i < n; i++ {
		ctx := requestcontext.WithTime(s.ctx, s.now.Add(time.Duration(i)*time.Minute))
		rec, err := s.service.Append(ctx, audit.Entry{
			EntityType: audit.EntityLot,
			EntityID:   fmt.Sprintf("lot-%d", i%2),
			Operation:  audit.OperationUpdate,
			OldValue:   map[string]any{"quantity": i},
			NewValue:   map[string]any{"quantity": i + 1},
		})
		s.Require().NoError(err)
		records = append(records, rec)
	}
	return records
}

func (s *AuditServiceSuite) TestAppend() {
	s.Run("first record hashes its own signature", func() {
		rec, err := s.service.Append(s.ctx, audit.Entry{
			EntityType: audit.EntityLot,
			EntityID:   "lot-1",
			Operation:  audit.OperationCreate,
			NewValue:   map[string]any{"species": "Cannabis sativa"},
		})
		s.Require().NoError(err)
		s.Equal(int64(1), rec.ID)
		s.Equal(audit.ChainHash("", rec.Signature), rec.ChainHash)
		s.Nil(rec.OldValue)
		s.JSONEq(`{"species":"Cannabis sativa"}`, string(rec.NewValue))
	})

	s.Run("resolves actor from context", func() {
		rec, err := s.service.Append(s.ctx, audit.Entry{EntityType: audit.EntityPlant, EntityID: "p-1", Operation: audit.OperationCreate})
		s.Require().NoError(err)
		s.Equal("inspector-7", rec.ActorID)
		s.Equal("inspector", rec.ActorRole)
		s.Equal(s.now, rec.Timestamp)
	})

	s.Run("keeps explicit actor", func() {
		rec, err := s.service.Append(s.ctx, audit.Entry{
			EntityType: audit.EntityPlant, EntityID: "p-1", Operation: audit.OperationRead,
			ActorID: "auditor-1", ActorRole: "auditor",
		})
		s.Require().NoError(err)
		s.Equal("auditor-1", rec.ActorID)
	})

	s.Run("rejects unknown operation", func() {
		_, err := s.service.Append(s.ctx, audit.Entry{EntityType: audit.EntityLot, EntityID: "lot-1", Operation: "PATCH"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing entity", func() {
		_, err := s.service.Append(s.ctx, audit.Entry{EntityType: audit.EntityLot, Operation: audit.OperationCreate})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("cancelled context commits nothing", func() {
		before, err := s.service.Count(s.ctx)
		s.Require().NoError(err)
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err = s.service.Append(ctx, audit.Entry{EntityType: audit.EntityLot, EntityID: "lot-9", Operation: audit.OperationCreate})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		after, err := s.service.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

func (s *AuditServiceSuite) TestChainIsLinear() {
	records := s.appendN(5)
	for i := 1; i < len(records); i++ {
		s.Equal(records[i-1].ID+1, records[i].ID)
		s.Equal(audit.ChainHash(records[i-1].Signature, records[i].Signature), records[i].ChainHash)
	}

	result, err := s.service.VerifyChain(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Equal(5, result.Checked)
	s.NoError(result.Err())
}

func (s *AuditServiceSuite) TestConcurrentAppendsStayLinear() {
	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.service.Append(s.ctx, audit.Entry{
				EntityType: audit.EntityPlant,
				EntityID:   fmt.Sprintf("plant-%d", i),
				Operation:  audit.OperationCreate,
				NewValue:   map[string]any{"n": i},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	result, err := s.service.VerifyChain(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.True(result.Valid, result.Message)
	s.Equal(writers, result.Checked)
}

func (s *AuditServiceSuite) TestVerifyChainDetectsTampering() {
	cases := []struct {
		name   string
		target int64
		mutate func(r *audit.Record)
	}{
		{"edited new value", 3, func(r *audit.Record) { r.NewValue = json.RawMessage(`{"quantity":999}`) }},
		{"edited actor", 2, func(r *audit.Record) { r.ActorID = "someone-else" }},
		{"replaced signature", 4, func(r *audit.Record) { r.Signature = "Zm9yZ2Vk" }},
		{"replaced chain hash", 5, func(r *audit.Record) { r.ChainHash = "deadbeef" }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			records := s.appendN(6)
			tampered := *records[tc.target-1]
			tc.mutate(&tampered)
			s.Require().True(s.store.Overwrite(&tampered))

			result, err := s.service.VerifyChain(s.ctx, 0, 0)
			s.Require().NoError(err)
			s.False(result.Valid)
			s.Equal(tc.target, result.BrokenAtID)
			s.Equal(int(tc.target-1), result.Checked)

			verr := result.Err()
			s.Require().Error(verr)
			s.True(dErrors.HasCode(verr, dErrors.CodeChainIntegrity))
		})
	}
}

func (s *AuditServiceSuite) TestReplacedSignatureBreaksSuccessor() {
	records := s.appendN(4)
	// A forger who recomputes record 2's chain hash still breaks record 3.
	forged := *records[1]
	forged.NewValue = json.RawMessage(`{"quantity":0}`)
	sig, err := audit.Sign(&forged, "test-secret")
	s.Require().NoError(err)
	forged.Signature = sig
	forged.ChainHash = audit.ChainHash(records[0].Signature, sig)
	s.Require().True(s.store.Overwrite(&forged))

	result, err := s.service.VerifyChain(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(int64(3), result.BrokenAtID)
}

func (s *AuditServiceSuite) TestVerifySubRange() {
	s.appendN(6)

	result, err := s.service.VerifyChain(s.ctx, 3, 5)
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Equal(3, result.Checked)

	s.Run("batched walk covers every record", func() {
		svc := audit.NewService(s.store, "test-secret", audit.WithVerifyBatchSize(2))
		result, err := svc.VerifyChain(s.ctx, 2, 0)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal(5, result.Checked)
	})

	s.Run("wrong secret fails at first record", func() {
		svc := audit.NewService(s.store, "other-secret")
		result, err := svc.VerifyChain(s.ctx, 0, 0)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(int64(1), result.BrokenAtID)
	})

	s.Run("inverted range is rejected", func() {
		_, err := s.service.VerifyChain(s.ctx, 5, 3)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *AuditServiceSuite) TestVerifyEmptyRangeIsValid() {
	result, err := s.service.VerifyChain(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Zero(result.Checked)

	s.appendN(2)
	result, err = s.service.VerifyChain(s.ctx, 10, 20)
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Zero(result.Checked)
}

func (s *AuditServiceSuite) TestTrail() {
	s.appendN(6)
	_, err := s.service.Append(requestcontext.WithTime(s.ctx, s.now.Add(time.Hour)), audit.Entry{
		EntityType: audit.EntityLot, EntityID: "lot-0", Operation: audit.OperationRead,
		ActorID: "auditor-1", ActorRole: "auditor",
	})
	s.Require().NoError(err)

	s.Run("newest first", func() {
		records, err := s.service.Trail(s.ctx, audit.EntityLot, "lot-0", audit.TrailFilter{})
		s.Require().NoError(err)
		s.Require().Len(records, 4)
		s.Equal(audit.OperationRead, records[0].Operation)
		for i := 1; i < len(records); i++ {
			s.False(records[i].Timestamp.After(records[i-1].Timestamp))
		}
	})

	s.Run("filters by operation and actor", func() {
		records, err := s.service.Trail(s.ctx, audit.EntityLot, "lot-0", audit.TrailFilter{Operation: audit.OperationUpdate})
		s.Require().NoError(err)
		s.Len(records, 3)

		records, err = s.service.Trail(s.ctx, audit.EntityLot, "lot-0", audit.TrailFilter{ActorID: "auditor-1"})
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("filters by date range", func() {
		records, err := s.service.Trail(s.ctx, audit.EntityLot, "lot-0", audit.TrailFilter{
			From: s.now.Add(time.Minute),
			To:   s.now.Add(5 * time.Minute),
		})
		s.Require().NoError(err)
		s.Len(records, 2)
	})

	s.Run("rejects invalid filters", func() {
		_, err := s.service.Trail(s.ctx, audit.EntityLot, "lot-0", audit.TrailFilter{Operation: "MERGE"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.Trail(s.ctx, audit.EntityLot, "lot-0", audit.TrailFilter{From: s.now, To: s.now.Add(-time.Hour)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *AuditServiceSuite) TestReport() {
	s.appendN(4)
	_, err := s.service.Append(requestcontext.WithTime(s.ctx, s.now.Add(26*time.Hour)), audit.Entry{
		EntityType: audit.EntityPlant, EntityID: "p-1", Operation: audit.OperationCreate,
	})
	s.Require().NoError(err)

	report, err := s.service.Report(s.ctx, s.now, s.now.Add(48*time.Hour))
	s.Require().NoError(err)
	s.Equal(5, report.Total)
	s.Equal(4, report.ByEntityType[audit.EntityLot])
	s.Equal(1, report.ByOperation[audit.OperationCreate])
	s.Equal(5, report.ByActor["inspector-7"])
	s.Require().Len(report.Rows, 2)
	s.Equal(audit.ReportRow{EntityType: audit.EntityLot, Operation: audit.OperationUpdate, Day: "2025-03-01", Count: 4}, report.Rows[0])
	s.Equal("2025-03-02", report.Rows[1].Day)

	_, err = s.service.Report(s.ctx, s.now, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
