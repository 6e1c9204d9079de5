package chain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/agent/controller"
	"github.com/tarsy-project/tarsy-core/pkg/agent/prompt"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// fullPromptBuilder is agent.PromptBuilder plus the two executive-summary
// methods summary.go needs. Kept local rather than folded into
// agent.PromptBuilder itself so every other PromptBuilder mock in the
// module doesn't have to grow them too; *prompt.Builder satisfies this
// structurally without any adapter.
type fullPromptBuilder interface {
	agent.PromptBuilder
	BuildExecutiveSummarySystemPrompt() string
	BuildExecutiveSummaryUserPrompt(finalAnalysis string) string
}

// agentFactory is the seam this package depends on instead of *agent.Factory
// directly, so tests can substitute a fake Agent without a real LLM/MCP
// backend. Satisfied by *agent.Factory unchanged.
type agentFactory interface {
	CreateAgent(execCtx *agent.ExecutionContext) (agent.Agent, error)
}

// Executor runs one chain (component 8). One Executor is shared across
// every session a replica picks up — it holds no per-run state itself.
type Executor struct {
	cfg    *config.Config
	store  store.Store
	events eventbus.Bus

	llm   *llmclient.Client
	tools ToolExecutorFactory

	agents  agentFactory
	prompts fullPromptBuilder

	mcpRegistry *config.MCPServerRegistry
	tracker     CancellationTracker
}

// NewExecutor builds an Executor, wiring its own controller factory and
// agent factory and prompt builder from cfg, the way the teacher's
// NewRealSessionExecutor builds its sub-collaborators internally rather
// than taking them all as constructor parameters.
func NewExecutor(
	cfg *config.Config,
	st store.Store,
	events eventbus.Bus,
	llm *llmclient.Client,
	tools ToolExecutorFactory,
	tracker CancellationTracker,
) *Executor {
	controllerFactory := controller.NewFactory()
	return &Executor{
		cfg:         cfg,
		store:       st,
		events:      events,
		llm:         llm,
		tools:       tools,
		agents:      agent.NewFactory(controllerFactory),
		prompts:     prompt.NewBuilder(cfg),
		mcpRegistry: cfg.MCPServerRegistry,
		tracker:     tracker,
	}
}

// Run drives session's resolved chain to completion, from its current
// stage index through to either a terminal status or a pause (spec §4.8).
// It never mutates session itself or writes the session row; the caller
// (component 10's worker) does that from the returned Result.
func (e *Executor) Run(ctx context.Context, session *model.Session) *Result {
	snapshot, err := DecodeSnapshot(session.ChainDefinition)
	if err != nil {
		return &Result{Status: model.SessionFailed, Error: fmt.Errorf("%w: %v", ErrNoChainDefinition, err)}
	}

	var findings []stageFinding
	startIndex := session.CurrentStageIndex
	if startIndex < 0 || startIndex > len(snapshot.Chain.Stages) {
		startIndex = 0
	}

	var lastAnalysis string
	for idx := startIndex; idx < len(snapshot.Chain.Stages); idx++ {
		stageCfg := snapshot.Chain.Stages[idx]

		outcome := e.executeStage(ctx, session, snapshot.Chain, stageCfg, idx, buildChainContext(findings), snapshot.AlertData, snapshot.RunbookContent)

		switch outcome.status {
		case model.StagePaused:
			return &Result{
				Status:            model.SessionPaused,
				FinalAnalysis:     lastAnalysis,
				Pause:             outcome.pause,
				PausedStageIndex:  idx,
				PausedStageID:     fmt.Sprintf("%d-%s", idx, stageCfg.Name),
				PausedExecutionID: outcome.pausedExecutionID,
			}
		case model.StageCancelled:
			return &Result{Status: model.SessionCancelled, FinalAnalysis: lastAnalysis, Error: fmt.Errorf("%s", outcome.errMsg)}
		case model.StageTimedOut:
			return &Result{Status: model.SessionTimedOut, FinalAnalysis: lastAnalysis, Error: fmt.Errorf("%s", outcome.errMsg)}
		case model.StageFailed:
			return &Result{Status: model.SessionFailed, FinalAnalysis: lastAnalysis, Error: fmt.Errorf("%s", outcome.errMsg)}
		case model.StagePartial:
			if outcome.finalAnalysis == "" {
				// the success policy didn't let a partial stage continue the
				// chain (spec §4.11's success_policy): stop here, same as FAILED.
				return &Result{Status: model.SessionFailed, FinalAnalysis: lastAnalysis, Error: fmt.Errorf("%s", outcome.errMsg)}
			}
			findings = append(findings, stageFinding{stageName: stageCfg.Name, finalAnalysis: outcome.finalAnalysis})
			lastAnalysis = outcome.finalAnalysis
		default: // model.StageCompleted
			findings = append(findings, stageFinding{stageName: stageCfg.Name, finalAnalysis: outcome.finalAnalysis})
			lastAnalysis = outcome.finalAnalysis
		}
	}

	summary, summaryErr := e.executiveSummary(ctx, session, snapshot.Chain, lastAnalysis)
	if summaryErr != "" {
		slog.Warn("chain: executive summary failed, session still completes", "session_id", session.SessionID, "error", summaryErr)
	}

	return &Result{
		Status:                model.SessionCompleted,
		FinalAnalysis:         lastAnalysis,
		ExecutiveSummary:      summary,
		ExecutiveSummaryError: summaryErr,
	}
}
