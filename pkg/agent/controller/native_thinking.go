package controller

import (
	"context"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// NativeThinkingController implements the native function-calling loop
// (spec §4.7): tool calls come back as structured ToolCalls on the
// assistant message rather than parsed from text. Completion signal: a
// response with no tool calls.
type NativeThinkingController struct{}

// NewNativeThinkingController creates a new native thinking controller.
func NewNativeThinkingController() *NativeThinkingController {
	return &NativeThinkingController{}
}

// Run executes the native thinking iteration loop.
func (c *NativeThinkingController) Run(ctx context.Context, execCtx *agent.ExecutionContext, prevStageContext string) (*agent.ExecutionResult, error) {
	maxIter := execCtx.Config.MaxIterations
	totalUsage := agent.TokenUsage{}
	state := &agent.IterationState{MaxIterations: maxIter}

	if execCtx.PromptBuilder == nil {
		return nil, fmt.Errorf("PromptBuilder is nil: cannot call BuildNativeThinkingMessages")
	}
	conversation := execCtx.PromptBuilder.BuildNativeThinkingMessages(execCtx, prevStageContext)

	rawTools, err := execCtx.ToolExecutor.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	tools := toLLMToolDefinitions(rawTools)

	for iteration := 0; iteration < maxIter; iteration++ {
		state.CurrentIteration = iteration + 1

		if state.ShouldAbortOnTimeouts() {
			return failedResult(state, totalUsage), nil
		}

		iterCtx, iterCancel := context.WithTimeout(ctx, execCtx.Config.IterationTimeout)

		result, err := callLLM(iterCtx, execCtx, conversation, tools, llmclient.StreamNativeThinking, model.InteractionInvestigation,
			fmt.Sprintf("native-thinking iteration %d", iteration+1))
		if err != nil {
			iterCancel()
			state.RecordFailure(err.Error(), isTimeoutError(err))
			errMsg := fmt.Sprintf("Error from previous attempt: %s. Please try again.", err.Error())
			conversation = append(conversation, model.Message{Role: model.RoleUser, Content: errMsg})
			continue
		}

		accumulateUsage(&totalUsage, result.Usage)
		state.RecordSuccess()

		if len(result.Message.ToolCalls) == 0 {
			iterCancel()
			return &agent.ExecutionResult{
				Status:        agent.ExecutionStatusCompleted,
				FinalAnalysis: result.Message.Content,
				TokensUsed:    totalUsage,
			}, nil
		}

		conversation = append(conversation, result.Message)

		for _, tc := range result.Message.ToolCalls {
			serverID, toolName, splitErr := mcpclient.SplitToolName(mcpclient.NormalizeToolName(tc.Name))
			if splitErr != nil {
				serverID, toolName = "", tc.Name
			}

			toolResult, toolErr := executeToolCall(iterCtx, execCtx, model.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
			if toolErr != nil {
				state.RecordFailure(toolErr.Error(), isTimeoutError(toolErr))
				content := fmt.Sprintf("Error executing tool: %s", toolErr.Error())
				conversation = append(conversation, model.Message{Role: model.RoleTool, Content: content, ToolCallID: tc.ID, ToolName: tc.Name})
				continue
			}

			content := toolResult.Content
			if !toolResult.IsError {
				summarized, sumUsage := maybeSummarize(iterCtx, execCtx, serverID, toolName, toolResult.Content, conversation)
				content = summarized
				accumulateUsage(&totalUsage, sumUsage)
			}
			conversation = append(conversation, model.Message{Role: model.RoleTool, Content: content, ToolCallID: tc.ID, ToolName: tc.Name})
		}

		iterCancel()
	}

	return c.forceConclusion(ctx, execCtx, conversation, &totalUsage, state)
}

// forceConclusion calls the LLM without tools bound, forcing a plain-text
// final answer once the iteration budget is exhausted (spec §4.7).
func (c *NativeThinkingController) forceConclusion(
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

	conclusionPrompt := execCtx.PromptBuilder.BuildForcedConclusionPrompt(state.CurrentIteration, config.IterationStrategyNativeThinking)
	conversation = append(conversation, model.Message{Role: model.RoleUser, Content: conclusionPrompt})

	result, err := callLLM(ctx, execCtx, conversation, nil, llmclient.StreamFinalAnswer, model.InteractionFinalAnswer, "native-thinking forced conclusion")
	if err != nil {
		return &agent.ExecutionResult{
			Status:     agent.ExecutionStatusFailed,
			Error:      fmt.Errorf("forced conclusion LLM call failed: %w", err),
			TokensUsed: *totalUsage,
		}, nil
	}

	accumulateUsage(totalUsage, result.Usage)

	return &agent.ExecutionResult{
		Status:        agent.ExecutionStatusCompleted,
		FinalAnalysis: result.Message.Content,
		TokensUsed:    *totalUsage,
	}, nil
}
