package lots

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	PATCH(path string, body any) error
	GET(path string) error
	Status() int
	Body() string
	Field(path string) (any, error)
	Remember(name, value string)
	Expand(s string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &lotSteps{tc: tc}

	ctx.Step(`^I create a "([^"]*)" lot of "([^"]*)" certified as "([^"]*)"$`, steps.createCertifiedLot)
	ctx.Step(`^I create a "([^"]*)" lot of "([^"]*)" from "([^"]*)"$`, steps.createChildLot)
	ctx.Step(`^I record "([^"]*)" for "([^"]*)" at "([^"]*)" \(([-0-9.]+), ([-0-9.]+)\)$`, steps.recordEvent)
	ctx.Step(`^I plant a tagged plant "([^"]*)" in "([^"]*)"$`, steps.plant)
	ctx.Step(`^I move plant "([^"]*)" to stage "([^"]*)"$`, steps.moveStage)

	ctx.Step(`^the compliance score of "([^"]*)" should be (\d+)$`, steps.complianceScoreShouldBe)
	ctx.Step(`^the audit chain should be intact$`, steps.auditChainIntact)
}

type lotSteps struct {
	tc TestContext
}

func (s *lotSteps) createLot(name string, body map[string]any) error {
	if err := s.tc.POST("/lots", body); err != nil {
		return err
	}
	if s.tc.Status() != 201 {
		return fmt.Errorf("create lot %s: status %d: %s", name, s.tc.Status(), s.tc.Body())
	}
	for field, suffix := range map[string]string{"id": "", "qr_id": "_qr", "lot_number": "_number"} {
		v, err := s.tc.Field(field)
		if err != nil {
			return err
		}
		s.tc.Remember(name+suffix, fmt.Sprint(v))
	}
	return nil
}

func (s *lotSteps) createCertifiedLot(_ context.Context, lotType, name, cert string) error {
	return s.createLot(name, map[string]any{
		"type":     lotType,
		"species":  "Cannabis sativa",
		"quantity": "100",
		"unit":     "units",
		"location": map[string]any{"name": "Seed vault", "latitude": 18.79, "longitude": 98.98},
		"metadata": map[string]string{"certification": cert},
	})
}

func (s *lotSteps) createChildLot(_ context.Context, lotType, name, parent string) error {
	return s.createLot(name, map[string]any{
		"type":          lotType,
		"species":       "Cannabis sativa",
		"quantity":      "40",
		"unit":          "units",
		"location":      map[string]any{"name": "Greenhouse A", "latitude": 18.70, "longitude": 98.90},
		"parent_lot_id": s.tc.Expand("{" + parent + "}"),
	})
}

func (s *lotSteps) recordEvent(_ context.Context, eventType, lot, place, lat, lng string) error {
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return err
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return err
	}
	err = s.tc.POST(s.tc.Expand("/lots/{"+lot+"}/track"), map[string]any{
		"event_type": eventType,
		"location":   map[string]any{"name": place, "latitude": latitude, "longitude": longitude},
	})
	if err != nil {
		return err
	}
	if s.tc.Status() != 201 {
		return fmt.Errorf("record %s: status %d: %s", eventType, s.tc.Status(), s.tc.Body())
	}
	return nil
}

func (s *lotSteps) plant(_ context.Context, name, lot string) error {
	if err := s.tc.POST("/plants", map[string]any{"lot_id": s.tc.Expand("{" + lot + "}")}); err != nil {
		return err
	}
	if s.tc.Status() != 201 {
		return fmt.Errorf("plant %s: status %d: %s", name, s.tc.Status(), s.tc.Body())
	}
	id, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.Remember(name, fmt.Sprint(id))
	return nil
}

func (s *lotSteps) moveStage(_ context.Context, plant, stage string) error {
	return s.tc.PATCH(s.tc.Expand("/plants/{"+plant+"}/lifecycle"), map[string]any{"stage": stage})
}

func (s *lotSteps) complianceScoreShouldBe(_ context.Context, lot string, want int) error {
	if err := s.tc.GET(s.tc.Expand("/verify/{" + lot + "}")); err != nil {
		return err
	}
	v, err := s.tc.Field("score")
	if err != nil {
		return err
	}
	if score, ok := v.(float64); !ok || int(score) != want {
		return fmt.Errorf("expected compliance score %d, got %v", want, v)
	}
	return nil
}

func (s *lotSteps) auditChainIntact(context.Context) error {
	if err := s.tc.GET("/audit/verify"); err != nil {
		return err
	}
	v, err := s.tc.Field("valid")
	if err != nil {
		return err
	}
	if valid, _ := v.(bool); !valid {
		return fmt.Errorf("audit chain reported broken: %s", s.tc.Body())
	}
	return nil
}
