package controller

import (
	"context"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// SynthesisController implements a tool-less, single LLM call that
// combines the findings of one or more completed investigation stages
// (spec §4.7) into one coherent analysis.
type SynthesisController struct{}

// NewSynthesisController creates a new synthesis controller.
func NewSynthesisController() *SynthesisController {
	return &SynthesisController{}
}

// Run executes a single LLM call to synthesize previous stage results.
func (c *SynthesisController) Run(ctx context.Context, execCtx *agent.ExecutionContext, prevStageContext string) (*agent.ExecutionResult, error) {
	if execCtx.PromptBuilder == nil {
		return nil, fmt.Errorf("PromptBuilder is nil: cannot call BuildSynthesisMessages")
	}
	conversation := execCtx.PromptBuilder.BuildSynthesisMessages(execCtx, prevStageContext)

	result, err := callLLM(ctx, execCtx, conversation, nil, llmclient.StreamFinalAnswer, model.InteractionFinalAnswer, "synthesis")
	if err != nil {
		return nil, fmt.Errorf("synthesis LLM call failed: %w", err)
	}

	finalAnalysis := result.Message.Content
	if finalAnalysis == "" && result.ThinkingContent != "" {
		finalAnalysis = result.ThinkingContent
	}

	var usage agent.TokenUsage
	accumulateUsage(&usage, result.Usage)

	return &agent.ExecutionResult{
		Status:        agent.ExecutionStatusCompleted,
		FinalAnalysis: finalAnalysis,
		TokensUsed:    usage,
	}, nil
}
