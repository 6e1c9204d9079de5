package controller

import (
	"context"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// ReActController implements the standard Reason + Act loop with
// text-based tool calling (spec §4.7): the primary investigation strategy,
// portable across every LLM provider since it needs no native function
// calling support.
type ReActController struct{}

// NewReActController creates a new ReAct controller.
func NewReActController() *ReActController {
	return &ReActController{}
}

// Run executes the ReAct iteration loop.
func (c *ReActController) Run(ctx context.Context, execCtx *agent.ExecutionContext, prevStageContext string) (*agent.ExecutionResult, error) {
	maxIter := execCtx.Config.MaxIterations
	totalUsage := agent.TokenUsage{}
	state := &agent.IterationState{MaxIterations: maxIter}

	tools, err := execCtx.ToolExecutor.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	if execCtx.PromptBuilder == nil {
		return nil, fmt.Errorf("PromptBuilder is nil: cannot call BuildReActMessages")
	}
	conversation := execCtx.PromptBuilder.BuildReActMessages(execCtx, prevStageContext, tools)

	names := toolNameSet(tools)

	for iteration := 0; iteration < maxIter; iteration++ {
		state.CurrentIteration = iteration + 1

		if state.ShouldAbortOnTimeouts() {
			return failedResult(state, totalUsage), nil
		}

		iterCtx, iterCancel := context.WithTimeout(ctx, execCtx.Config.IterationTimeout)

		result, err := callLLM(iterCtx, execCtx, conversation, nil, llmclient.StreamThought, model.InteractionInvestigation,
			fmt.Sprintf("react iteration %d", iteration+1))
		if err != nil {
			iterCancel()
			state.RecordFailure(err.Error(), isTimeoutError(err))
			observation := FormatErrorObservation(err)
			conversation = append(conversation, model.Message{Role: model.RoleUser, Content: observation})
			continue
		}

		accumulateUsage(&totalUsage, result.Usage)
		state.RecordSuccess()

		conversation = append(conversation, model.Message{Role: model.RoleAssistant, Content: result.Message.Content})

		parsed := ParseReActResponse(result.Message.Content)

		switch {
		case parsed.IsFinalAnswer:
			iterCancel()
			return &agent.ExecutionResult{
				Status:        agent.ExecutionStatusCompleted,
				FinalAnalysis: parsed.FinalAnswer,
				TokensUsed:    totalUsage,
			}, nil

		case parsed.HasAction && !parsed.IsUnknownTool:
			if !names[parsed.Action] {
				observation := FormatUnknownToolError(parsed.Action, fmt.Sprintf("Unknown tool '%s'", parsed.Action), tools)
				conversation = append(conversation, model.Message{Role: model.RoleUser, Content: observation})
			} else {
				toolResult, toolErr := executeToolCall(iterCtx, execCtx, model.ToolCall{
					ID:        generateCallID(),
					Name:      parsed.Action,
					Arguments: parsed.ActionInput,
				})
				if toolErr != nil {
					state.RecordFailure(toolErr.Error(), isTimeoutError(toolErr))
					observation := FormatToolErrorObservation(toolErr)
					conversation = append(conversation, model.Message{Role: model.RoleUser, Content: observation})
				} else {
					observation := FormatObservation(toolResult)
					conversation = append(conversation, model.Message{Role: model.RoleUser, Content: observation})
				}
			}

		case parsed.IsUnknownTool:
			observation := FormatUnknownToolError(parsed.Action, parsed.ErrorMessage, tools)
			conversation = append(conversation, model.Message{Role: model.RoleUser, Content: observation})

		default:
			feedback := GetFormatErrorFeedback(parsed)
			conversation = append(conversation, model.Message{Role: model.RoleUser, Content: feedback})
		}

		iterCancel()
	}

	return c.forceConclusion(ctx, execCtx, conversation, &totalUsage, state)
}

// forceConclusion forces the LLM to produce a final answer once the
// iteration budget is exhausted (spec §4.7).
func (c *ReActController) forceConclusion(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	conversation []model.Message,
	totalUsage *agent.TokenUsage,
	state *agent.IterationState,
) (*agent.ExecutionResult, error) {
	if state.LastInteractionFailed {
		return &agent.ExecutionResult{
			Status: agent.ExecutionStatusFailed,
			Error: fmt.Errorf("max iterations (%d) reached with last interaction failed: %s",
				state.MaxIterations, state.LastErrorMessage),
			TokensUsed: *totalUsage,
		}, nil
	}

	conclusionPrompt := execCtx.PromptBuilder.BuildForcedConclusionPrompt(state.CurrentIteration, config.IterationStrategyReact)
	conversation = append(conversation, model.Message{Role: model.RoleUser, Content: conclusionPrompt})

	conclusionCtx, cancel := context.WithTimeout(ctx, execCtx.Config.IterationTimeout)
	defer cancel()

	result, err := callLLM(conclusionCtx, execCtx, conversation, nil, llmclient.StreamFinalAnswer, model.InteractionFinalAnswer, "react forced conclusion")
	if err != nil {
		return &agent.ExecutionResult{
			Status:     agent.ExecutionStatusFailed,
			Error:      fmt.Errorf("forced conclusion LLM call failed: %w", err),
			TokensUsed: *totalUsage,
		}, nil
	}

	accumulateUsage(totalUsage, result.Usage)

	parsed := ParseReActResponse(result.Message.Content)
	finalAnswer := ExtractForcedConclusionAnswer(parsed)
	if finalAnswer == "" {
		finalAnswer = result.Message.Content
	}

	return &agent.ExecutionResult{
		Status:        agent.ExecutionStatusCompleted,
		FinalAnalysis: finalAnswer,
		TokensUsed:    *totalUsage,
	}, nil
}
