package lifecycle_test

import (
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"seedtrace/internal/lifecycle"
	"seedtrace/pkg/domain"
)

func (s *LifecycleServiceSuite) TestMutationsAreTraced() {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(s.ctx) }()

	plant := s.createPlant()
	_, err := s.service.UpdatePlantLifecycle(s.ctx, plant.ID, domain.StageFlowering, lifecycle.StageContext{})
	s.Require().NoError(err)
	_, err = s.service.UpdatePlantLifecycle(s.ctx, plant.ID, domain.StageSeedling, lifecycle.StageContext{})
	s.Require().Error(err)

	statuses := map[string][]codes.Code{}
	for _, span := range recorder.Ended() {
		if strings.HasPrefix(span.Name(), "lifecycle.") {
			statuses[span.Name()] = append(statuses[span.Name()], span.Status().Code)
		}
	}
	s.Equal([]codes.Code{codes.Unset}, statuses["lifecycle.CreateLot"])
	s.Equal([]codes.Code{codes.Unset}, statuses["lifecycle.CreatePlant"])
	s.Equal([]codes.Code{codes.Unset, codes.Error}, statuses["lifecycle.UpdatePlantLifecycle"])
}
