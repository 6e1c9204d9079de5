package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// defaultExecutiveSummaryMaxTokens bounds the post-chain summary call (spec
// §4.8: "max 150 tokens, configurable").
const defaultExecutiveSummaryMaxTokens = 150

// executiveSummary runs the bounded post-chain summary over finalAnalysis.
// Fail-open: any error here is returned as a string for the caller to record
// on the session as executive_summary_error, never as a reason to fail the
// session itself.
func (e *Executor) executiveSummary(ctx context.Context, session *model.Session, chainCfg *config.ChainConfig, finalAnalysis string) (summary string, failure string) {
	if finalAnalysis == "" {
		return "", ""
	}

	providerName := chainCfg.ExecutiveSummaryProvider
	if providerName == "" {
		providerName = chainCfg.LLMProvider
	}
	if providerName == "" && e.cfg.Defaults != nil {
		providerName = e.cfg.Defaults.LLMProvider
	}
	if providerName == "" {
		return "", "no LLM provider configured for executive summary"
	}
	if e.llm == nil {
		return "", "no LLM client configured for executive summary"
	}

	providerCfg, err := e.cfg.LLMProviderRegistry.Get(providerName)
	if err != nil {
		return "", fmt.Sprintf("resolving executive summary provider: %v", err)
	}

	system := e.prompts.BuildExecutiveSummarySystemPrompt()
	user := e.prompts.BuildExecutiveSummaryUserPrompt(finalAnalysis)
	conversation := []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: user},
	}

	req := &llmclient.GenerateRequest{
		Conversation:    conversation,
		SessionID:       session.SessionID,
		Provider:        config.ToLLMProviderConfig(providerCfg),
		MaxTokens:       defaultExecutiveSummaryMaxTokens,
		InteractionType: model.InteractionFinalAnalysisSummary,
		StreamType:      llmclient.StreamSummarization,
	}

	start := time.Now()
	result, err := e.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Sprintf("generating executive summary: %v", err)
	}
	if result.Message.Content == "" {
		return "", "executive summary call returned no content"
	}

	e.recordExecutiveSummaryInteraction(ctx, session, conversation, result, start)
	return result.Message.Content, ""
}

// recordExecutiveSummaryInteraction persists the summary call as a
// session-level LLMInteraction (no stage execution id: it runs after the
// last stage completes) and publishes interaction.created.
func (e *Executor) recordExecutiveSummaryInteraction(
	ctx context.Context,
	session *model.Session,
	conversation []model.Message,
	result *llmclient.GenerateResult,
	start time.Time,
) {
	interactionID := ids.New()
	interaction := &model.LLMInteraction{
		InteractionID:   interactionID,
		SessionID:       session.SessionID,
		TimestampUs:     ids.NowMicros(),
		Conversation:    append(append([]model.Message{}, conversation...), result.Message),
		InteractionType: model.InteractionFinalAnalysisSummary,
		ThinkingContent: result.ThinkingContent,
		DurationMs:      time.Since(start).Milliseconds(),
		StepDescription: "executive summary",
	}
	if e.store != nil {
		if err := e.store.CreateLLMInteraction(ctx, interaction); err != nil {
			slog.Warn("chain: failed to persist executive summary interaction", "session_id", session.SessionID, "error", err)
		}
	}
	if e.events == nil {
		return
	}
	payload := eventbus.InteractionCreatedPayload{
		Type:          eventbus.EventInteractionCreated,
		SessionID:     session.SessionID,
		InteractionID: interactionID,
		Kind:          "llm",
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := e.events.Publish(ctx, model.SessionChannel(session.SessionID), payload); err != nil {
		slog.Warn("chain: failed to publish executive summary interaction.created", "session_id", session.SessionID, "error", err)
	}
}
