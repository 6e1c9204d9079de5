package agent

import (
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/config"
)

// ControllerFactory builds the Controller for a resolved iteration
// strategy. Implemented by pkg/agent/controller.Factory; kept as an
// interface so this package doesn't import the controller package (which
// imports this one).
type ControllerFactory interface {
	CreateController(strategy config.IterationStrategy) (Controller, error)
}

// Factory builds the Agent for one execution, given its resolved config.
type Factory struct {
	controllers ControllerFactory
}

// NewFactory creates a Factory backed by controllers.
func NewFactory(controllers ControllerFactory) *Factory {
	return &Factory{controllers: controllers}
}

// CreateAgent builds the Agent for execCtx: resolves the controller for
// its iteration strategy, then wraps it, special-casing the built-in
// KubernetesAgent (spec's supplemented worked example) so it carries its
// tool-selection hints.
func (f *Factory) CreateAgent(execCtx *ExecutionContext) (Agent, error) {
	if execCtx == nil || execCtx.Config == nil {
		return nil, fmt.Errorf("agent: execution context or its resolved config is nil")
	}

	controller, err := f.controllers.CreateController(execCtx.Config.IterationStrategy)
	if err != nil {
		return nil, fmt.Errorf("agent: building controller for %q: %w", execCtx.AgentName, err)
	}

	if execCtx.AgentName == "KubernetesAgent" {
		return NewKubernetesAgent(controller), nil
	}
	return NewBaseAgent(controller, ""), nil
}
