package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context these steps need.
type TestContext interface {
	GET(path string) error
	SetActor(id, role string)
	Status() int
	Body() string
	Field(path string) (any, error)
	Remember(name, value string)
	Expand(s string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the seedtrace API is healthy$`, steps.apiIsHealthy)
	ctx.Step(`^I act as "([^"]*)" with role "([^"]*)"$`, steps.actAs)
	ctx.Step(`^I act anonymously$`, steps.actAnonymously)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, steps.remember)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) apiIsHealthy(ctx context.Context) error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	return s.statusShouldBe(ctx, 200)
}

func (s *commonSteps) actAs(_ context.Context, id, role string) error {
	s.tc.SetActor(id, role)
	return nil
}

func (s *commonSteps) actAnonymously(context.Context) error {
	s.tc.SetActor("", "")
	return nil
}

func (s *commonSteps) get(_ context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(_ context.Context, path, want string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	want = s.tc.Expand(want)
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %s: expected %q, got %q", path, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(_ context.Context, path, want string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("field %s is not a boolean: %v", path, v)
	}
	if strconv.FormatBool(b) != want {
		return fmt.Errorf("field %s: expected %s, got %t", path, want, b)
	}
	return nil
}

func (s *commonSteps) remember(_ context.Context, path, name string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	s.tc.Remember(name, fmt.Sprint(v))
	return nil
}
