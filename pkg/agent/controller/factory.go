package controller

import (
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
)

// Factory builds the Controller for a resolved iteration strategy.
// Implements agent.ControllerFactory.
type Factory struct{}

// NewFactory creates a new controller factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateController builds a Controller for strategy.
func (f *Factory) CreateController(strategy config.IterationStrategy) (agent.Controller, error) {
	switch strategy {
	case config.IterationStrategyReact:
		return NewReActController(), nil
	case config.IterationStrategyNativeThinking:
		return NewNativeThinkingController(), nil
	case config.IterationStrategySynthesis:
		return NewSynthesisController(), nil
	default:
		return nil, fmt.Errorf("unknown iteration strategy: %q", strategy)
	}
}
