package e2e

import (
	"github.com/cucumber/godog"

	"seedtrace/e2e/steps/common"
	"seedtrace/e2e/steps/lots"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	lots.RegisterSteps(ctx, tc)
}
