package traceability

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedtrace/internal/audit"
	audithandler "seedtrace/internal/audit/handler"
	auditmemory "seedtrace/internal/audit/store/memory"
	"seedtrace/internal/compliance"
	"seedtrace/internal/identity"
	identityhandler "seedtrace/internal/identity/handler"
	qrmemory "seedtrace/internal/identity/store/memory"
	"seedtrace/internal/ledger"
	"seedtrace/internal/ledger/adapters"
	ledgermemory "seedtrace/internal/ledger/store/memory"
	"seedtrace/internal/lifecycle"
	lifecyclehandler "seedtrace/internal/lifecycle/handler"
	lifecyclememory "seedtrace/internal/lifecycle/store/memory"
	platformmetrics "seedtrace/internal/platform/metrics"
	"seedtrace/internal/reporting"
	reportinghandler "seedtrace/internal/reporting/handler"
	httptransport "seedtrace/internal/transport/http"
	"seedtrace/pkg/domain"
	"seedtrace/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	httpMetrics := platformmetrics.NewWithRegisterer(prometheus.NewRegistry())

	lots := lifecyclememory.NewInMemoryStore()
	auditService := audit.NewService(auditmemory.NewInMemoryStore(), "flow-secret")
	qrService := identity.NewService(qrmemory.NewInMemoryStore(), "https://trace.example.org")
	ledgerService := ledger.NewService(ledgermemory.NewInMemoryStore(), adapters.NewLifecycleSubjects(lots), auditService)
	lifecycleService := lifecycle.NewService(lots, auditService, ledgerService, qrService,
		identity.NewLotNumbers("FL", identity.NewMemorySequence()))
	reportingService := reporting.NewService(lifecycleService, ledgerService, auditService, qrService,
		compliance.NewEvaluator(compliance.DefaultRules()),
		reporting.WithResponseTimes(httpMetrics))

	return httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       log,
		Metrics:      httpMetrics,
		RequireActor: true,
	},
		lifecyclehandler.New(lifecycleService, ledgerService, qrService, log),
		reportinghandler.New(reportingService, log),
		audithandler.New(auditService, log),
		identityhandler.New(qrService, log),
	)
}

func coords(name string, lat, lng float64) domain.Location {
	return domain.NewLocation(name, lat, lng)
}

func TestSeedToShelfOverHTTP(t *testing.T) {
	router := newRouter(t)
	var seed lifecycle.Lot

	testutil.Given(t, "a certified seed lot", func(t *testing.T) {
		rr := testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPost, "/lots", map[string]any{
			"type":     "seed_lot",
			"species":  "Cannabis sativa",
			"variety":  "Hang Kra Rok",
			"quantity": "250",
			"unit":     "seeds",
			"location": coords("Seed vault", 18.79, 98.98),
			"metadata": map[string]string{lifecycle.MetaCertification: "GACP-2025-17"},
		})))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		seed = *testutil.UnmarshalResponse[lifecycle.Lot](t, rr)
		require.NotEmpty(t, seed.ID)
		assert.Equal(t, "FL-SD-20250301-0001", seed.LotNumber)
		assert.NotEmpty(t, seed.QRID)
	})

	testutil.When(t, "the lot is tracked through three stations", func(t *testing.T) {
		for _, ev := range []struct {
			eventType string
			loc       domain.Location
			details   map[string]any
		}{
			{ledger.EventSeedReceived, coords("Seed vault", 18.79, 98.98), nil},
			{ledger.EventSeedTested, coords("Lab, Chiang Mai", 18.80, 98.95), map[string]any{"test_result": "pass"}},
			{ledger.EventShipped, coords("Bangkok depot", 13.75, 100.50), nil},
		} {
			rr := testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPost, "/lots/"+seed.ID+"/track", map[string]any{
				"event_type": ev.eventType,
				"operator":   "grower-7",
				"location":   ev.loc,
				"details":    ev.details,
			})))
			testutil.AssertStatus(t, rr, http.StatusCreated)
		}
	})

	testutil.Then(t, "history, compliance and the audit chain agree", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/lots/"+seed.ID+"/history", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		history := testutil.UnmarshalResponse[reporting.TrackingHistory](t, rr)
		assert.Equal(t, 3, history.TotalEvents)
		assert.Greater(t, history.TotalDistanceKm, 500.0)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/verify/"+seed.ID, nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		result := testutil.UnmarshalResponse[compliance.Result](t, rr)
		assert.Equal(t, 100, result.Score)
		assert.True(t, result.Compliant)
		assert.Empty(t, result.MissingRequirements)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/audit/verify", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		chain := testutil.UnmarshalResponse[audit.ChainVerification](t, rr)
		assert.True(t, chain.Valid, chain.Message)
		assert.Equal(t, 4, chain.Checked)

		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/qr/"+seed.QRID+"/verify", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		qr := testutil.UnmarshalResponse[identity.VerifyResult](t, rr)
		assert.True(t, qr.Valid)
		assert.Equal(t, seed.ID, qr.Data.EntityID)
	})

	testutil.And(t, "the summary reflects the system", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/reports/summary", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		summary := testutil.UnmarshalResponse[reporting.Summary](t, rr)
		assert.Equal(t, 1, summary.TotalLots)
		assert.Equal(t, 3, summary.TotalEvents)
		assert.Equal(t, 1, summary.TotalQRCodes)
		assert.Equal(t, 1, summary.CompliantLots)
		assert.InDelta(t, 100.0, summary.AuditTrailIntegrity, 0.001)
		assert.Equal(t, reporting.StatusOperational, summary.SystemStatus)
		assert.Greater(t, summary.AverageResponseTimeMs, 0.0)
	})
}

func TestPrintedVerifyURLResolves(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPost, "/lots", map[string]any{
		"type":     "seed_lot",
		"species":  "Cannabis sativa",
		"quantity": "10",
		"unit":     "seeds",
		"location": coords("Seed vault", 18.79, 98.98),
	})))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	lot := testutil.UnmarshalResponse[lifecycle.Lot](t, rr)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/qr/"+lot.QRID, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	qr := testutil.UnmarshalResponse[identity.QRIdentity](t, rr)

	printed, err := url.Parse(qr.Payload.VerifyURL)
	require.NoError(t, err)
	assert.Equal(t, "trace.example.org", printed.Host)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, printed.Path, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	result := testutil.UnmarshalResponse[identity.VerifyResult](t, rr)
	assert.True(t, result.Valid, result.Reason)
	assert.Equal(t, lot.ID, result.Data.EntityID)
}

func TestAnonymousWritesAreRejected(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/lots", map[string]any{
		"type":    "seed_lot",
		"species": "Cannabis sativa",
	}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/lots", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestInvalidStageTransitionOverHTTP(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPost, "/lots", map[string]any{
		"type":     "plant_lot",
		"species":  "Cannabis sativa",
		"quantity": "40",
		"unit":     "plants",
		"location": coords("Greenhouse B", 18.70, 98.90),
	})))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	lot := testutil.UnmarshalResponse[lifecycle.Lot](t, rr)

	rr = testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPost, "/plants", map[string]any{
		"lot_id": lot.ID,
	})))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	plant := testutil.UnmarshalResponse[lifecycle.Plant](t, rr)
	assert.Equal(t, domain.StageSeedling, plant.Stage)

	rr = testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPatch, "/plants/"+plant.ID+"/lifecycle", map[string]any{
		"stage": "flowering",
	})))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPatch, "/plants/"+plant.ID+"/lifecycle", map[string]any{
		"stage": "vegetative",
	})))
	testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_transition")

	rr = testutil.DoRequest(router, withActor(testutil.NewJSONRequest(t, http.MethodPatch, "/plants/"+plant.ID+"/lifecycle", map[string]any{
		"stage": "bloom",
	})))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}

var flowTime = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// withActor stands in for the identity headers and pins the request clock.
func withActor(req *http.Request) *http.Request {
	return testutil.WithRequestTime(testutil.WithActor(req, "grower-7", "grower"), flowTime)
}
