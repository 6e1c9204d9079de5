package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// callLLM issues one generate_response call and persists it as an
// LLMInteraction (spec §3/§4.6), publishing interaction.created so a
// connected dashboard can fetch it. Streaming chunk publication already
// happens one layer down inside execCtx.LLMClient.Generate.
func callLLM(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	conversation []model.Message,
	tools []llmclient.ToolDefinition,
	streamType llmclient.StreamType,
	interactionType model.InteractionType,
	stepDescription string,
) (*llmclient.GenerateResult, error) {
	start := time.Now()

	req := &llmclient.GenerateRequest{
		Conversation:        conversation,
		SessionID:           execCtx.SessionID,
		StageExecutionID:    execCtx.ExecutionID,
		Provider:            config.ToLLMProviderConfig(execCtx.Config.LLMProvider),
		InteractionType:     interactionType,
		Tools:               tools,
		StreamType:          streamType,
		ParallelMetadata:    execCtx.ParallelMetadata,
		NativeToolsOverride: execCtx.NativeToolsOverride,
	}

	result, err := execCtx.LLMClient.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	recordLLMInteraction(ctx, execCtx, conversation, result, start, stepDescription)
	return result, nil
}

// recordLLMInteraction persists the completed call and fans out
// interaction.created; failures are logged-and-swallowed (best-effort,
// matching the teacher's "never let audit trail writes fail the
// investigation" stance) rather than returned, since the investigation
// already has its answer in hand.
func recordLLMInteraction(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	conversation []model.Message,
	result *llmclient.GenerateResult,
	start time.Time,
	stepDescription string,
) {
	interactionID := ids.New()

	var responseMetadata []byte
	if result.Usage != nil || result.Grounding != nil {
		responseMetadata, _ = json.Marshal(struct {
			Usage     *llmclient.UsageChunk     `json:"usage,omitempty"`
			Grounding *llmclient.GroundingChunk `json:"grounding,omitempty"`
		}{result.Usage, result.Grounding})
	}

	interaction := &model.LLMInteraction{
		InteractionID:    interactionID,
		SessionID:        execCtx.SessionID,
		StageExecutionID: execCtx.ExecutionID,
		TimestampUs:      ids.NowMicros(),
		Conversation:     result.Conversation(&llmclient.GenerateRequest{Conversation: conversation}),
		ModelName:        execCtx.Config.LLMProvider.Model,
		Provider:         string(execCtx.Config.LLMProvider.Type),
		InteractionType:  result.InteractionType,
		ResponseMetadata: responseMetadata,
		ThinkingContent:  result.ThinkingContent,
		DurationMs:       time.Since(start).Milliseconds(),
		StepDescription:  stepDescription,
	}

	if execCtx.Store != nil {
		_ = execCtx.Store.CreateLLMInteraction(ctx, interaction)
	}
	publishInteractionCreated(ctx, execCtx, interactionID, "llm")
}

// recordMCPInteraction persists one tool call/result pair (spec §3) and
// fans out interaction.created.
func recordMCPInteraction(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	serverID, toolName string,
	argsJSON []byte,
	resultJSON []byte,
	success bool,
	errMsg string,
	start time.Time,
) {
	interactionID := ids.New()
	interaction := &model.MCPInteraction{
		RequestID:         interactionID,
		SessionID:         execCtx.SessionID,
		StageExecutionID:  execCtx.ExecutionID,
		TimestampUs:       ids.NowMicros(),
		ServerName:        serverID,
		CommunicationType: model.MCPToolCall,
		ToolName:          toolName,
		ToolArguments:     argsJSON,
		ToolResult:        resultJSON,
		DurationMs:        time.Since(start).Milliseconds(),
		Success:           success,
		ErrorMessage:      errMsg,
	}

	if execCtx.Store != nil {
		_ = execCtx.Store.CreateMCPInteraction(ctx, interaction)
	}
	publishInteractionCreated(ctx, execCtx, interactionID, "mcp")
}

func publishInteractionCreated(ctx context.Context, execCtx *agent.ExecutionContext, interactionID, kind string) {
	if execCtx.Events == nil {
		return
	}
	payload := eventbus.InteractionCreatedPayload{
		Type:             eventbus.EventInteractionCreated,
		SessionID:        execCtx.SessionID,
		StageExecutionID: execCtx.ExecutionID,
		InteractionID:    interactionID,
		Kind:             kind,
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
	}
	_, _ = execCtx.Events.Publish(ctx, "session:"+execCtx.SessionID, payload)
}

// toolNameSet builds a lookup set of every "server.tool" name the tool
// list offers, for O(1) validation of a parsed ReAct action.
func toolNameSet(tools []mcpclient.ToolDefinition) map[string]bool {
	set := make(map[string]bool, len(tools))
	for _, t := range tools {
		set[t.Name] = true
	}
	return set
}

// isTimeoutError reports whether err is (or wraps) a context deadline
// expiry, used to distinguish a timed-out call from any other failure for
// IterationState's consecutive-timeout tracking.
func isTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// failedResult builds the terminal result for a controller aborting after
// MaxConsecutiveTimeouts consecutive timeouts.
func failedResult(state *agent.IterationState, usage agent.TokenUsage) *agent.ExecutionResult {
	return &agent.ExecutionResult{
		Status: agent.ExecutionStatusFailed,
		Error: fmt.Errorf("aborted after %d consecutive timeouts (iteration %d/%d): %s",
			state.ConsecutiveTimeoutFailures, state.CurrentIteration, state.MaxIterations, state.LastErrorMessage),
		TokensUsed: usage,
	}
}

// accumulateUsage folds one call's usage chunk into the running total; a
// nil chunk (provider reported no usage) is a no-op.
func accumulateUsage(total *agent.TokenUsage, usage *llmclient.UsageChunk) {
	if usage == nil {
		return
	}
	total.Add(agent.TokenUsage{
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		TotalTokens:    usage.TotalTokens,
		ThinkingTokens: usage.ThinkingTokens,
	})
}

// buildConversationContext renders the conversation so far as compact text
// for the tool-summarization prompt, which needs context but not the full
// structured message list.
func buildConversationContext(conversation []model.Message) string {
	var b strings.Builder
	for _, m := range conversation {
		if m.Content == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, truncateForContext(m.Content))
	}
	return b.String()
}

// truncateForContext bounds one message's contribution to the
// summarization context prompt so a single huge prior tool result doesn't
// dominate the budget meant for the new one.
func truncateForContext(content string) string {
	const maxChars = 2000
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + "... [truncated]"
}

// maybeSummarize runs the best-effort MCP-result summarization call when
// the server's configured threshold is exceeded (spec §4.5). Any failure
// — config lookup, LLM call — falls back to the original content rather
// than failing the investigation.
func maybeSummarize(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	serverID, toolName, resultContent string,
	conversation []model.Message,
) (content string, usage *llmclient.UsageChunk) {
	if execCtx.MCPRegistry == nil {
		return resultContent, nil
	}
	serverConfig, err := execCtx.MCPRegistry.Get(serverID)
	if err != nil || serverConfig.Summarization == nil {
		return resultContent, nil
	}
	sumCfg := &mcpclient.SummarizationConfig{
		Enabled:          serverConfig.Summarization.Enabled,
		ThresholdTokens:  serverConfig.Summarization.SizeThresholdTokens,
		SummaryMaxTokens: serverConfig.Summarization.SummaryMaxTokenLimit,
	}
	if !mcpclient.ShouldSummarize(resultContent, sumCfg) {
		return resultContent, nil
	}

	truncated := mcpclient.TruncateForSummarization(resultContent)
	maxSummaryTokens := sumCfg.SummaryMaxTokens
	if maxSummaryTokens <= 0 {
		maxSummaryTokens = mcpclient.DefaultStorageMaxTokens
	}

	system := execCtx.PromptBuilder.BuildMCPSummarizationSystemPrompt(serverID, toolName, maxSummaryTokens)
	userMsg := execCtx.PromptBuilder.BuildMCPSummarizationUserPrompt(buildConversationContext(conversation), serverID, toolName, truncated)

	summaryConversation := []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: userMsg},
	}

	result, err := callLLM(ctx, execCtx, summaryConversation, nil, llmclient.StreamSummarization, model.InteractionSummarization,
		fmt.Sprintf("summarize %s.%s result", serverID, toolName))
	if err != nil || result.Message.Content == "" {
		return resultContent, nil
	}
	return result.Message.Content, result.Usage
}

// toLLMToolDefinitions converts the executor's tool list into the wire
// shape llmclient binds for native function calling, renaming "server.tool"
// to "server__tool" since provider function names cannot contain dots.
func toLLMToolDefinitions(tools []mcpclient.ToolDefinition) []llmclient.ToolDefinition {
	out := make([]llmclient.ToolDefinition, len(tools))
	for i, t := range tools {
		out[i] = llmclient.ToolDefinition{
			Name:             strings.Replace(t.Name, ".", "__", 1),
			Description:      t.Description,
			ParametersSchema: t.ParametersSchema,
		}
	}
	return out
}

// generateCallID mints a stable per-call identifier for a ReAct action,
// since the text-based format carries no call id of its own — native
// function calling gets one from the provider instead.
func generateCallID() string {
	return ids.New()
}

// marshalArgs JSON-encodes v for MCPInteraction.ToolArguments/ToolResult,
// tolerating a plain string (ReAct's raw Action Input text) alongside
// structured values.
func marshalArgs(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(strconv.Quote(fmt.Sprintf("%v", v)))
	}
	return b
}
