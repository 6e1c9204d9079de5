package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// agentRunResult is one agent execution's outcome, independent of whether
// it ran alone (a single-agent stage) or as one of N parallel children.
type agentRunResult struct {
	executionID       string
	agentName         string
	status            model.StageStatus
	finalAnalysis     string
	errMsg            string
	pause             *agent.PauseState
	iterationStrategy string
}

// agentRunInput bundles everything runAgent needs that doesn't vary across
// the children of a single parallel stage, so executeStage doesn't have to
// repeat a dozen parameters per fan-out call.
type agentRunInput struct {
	session   *model.Session
	chain     *config.ChainConfig
	stage     config.StageConfig
	stageID   string
	stageIndex int

	alertData      string
	runbookContent string
	prevContext    string

	// parentExecutionID is non-empty only for a parallel stage's children,
	// linking each child StageExecution back to its parent row (spec §4.8).
	parentExecutionID string
}

// runAgent resolves one agent's config, creates its StageExecution row,
// runs it to completion, and persists/publishes the outcome. Grounded on
// the teacher's executeAgent, adapted to: reclassify CANCELLED/TIMED_OUT
// through the cancellation tracker (spec §4.9) instead of inspecting
// ctx.Err() directly, and to honor a PAUSED result instead of forcing one.
func (e *Executor) runAgent(
	ctx context.Context,
	in agentRunInput,
	stageAgent config.StageAgentConfig,
	agentIndex int,
	displayName string,
	parallelMeta *llmclient.ParallelMetadata,
) *agentRunResult {
	logger := slog.With("session_id", in.session.SessionID, "stage_id", in.stageID, "agent_name", displayName)

	resolvedConfig, err := config.ResolveAgentConfig(e.cfg, in.chain, in.stage, stageAgent)
	if err != nil {
		return &agentRunResult{
			agentName: displayName,
			status:    model.StageFailed,
			errMsg:    fmt.Sprintf("resolving agent config: %v", err),
		}
	}

	executionID := ids.New()
	startedAt := ids.NowMicros()
	exec := &model.StageExecution{
		ExecutionID:       executionID,
		SessionID:         in.session.SessionID,
		StageID:           in.stageID,
		StageIndex:        in.stageIndex,
		StageName:         in.stage.Name,
		Agent:             displayName,
		Status:            model.StageActive,
		StartedAtUs:       &startedAt,
		IterationStrategy: string(resolvedConfig.IterationStrategy),
		ParallelIndex:     agentIndex,
	}
	if in.parentExecutionID != "" {
		exec.ParentStageExecutionID = in.parentExecutionID
		exec.ParallelType = model.ParallelMulti
	} else {
		exec.ParallelType = model.ParallelSingle
	}
	if err := e.store.CreateStageExecution(ctx, exec); err != nil {
		logger.Error("chain: failed to create stage execution", "error", err)
		return &agentRunResult{agentName: displayName, status: model.StageFailed, errMsg: fmt.Sprintf("creating stage execution: %v", err)}
	}
	e.publishStageStatus(ctx, exec, model.StageActive)

	result := &agentRunResult{executionID: executionID, agentName: displayName, iterationStrategy: string(resolvedConfig.IterationStrategy)}

	servers, toolFilter := resolveMCPServers(resolvedConfig.MCPServers, in.session.MCPSelection)
	toolExecutor, failedServers, closeExecutor, err := e.tools.Create(ctx, servers, toolFilter)
	if err != nil {
		logger.Error("chain: failed to create MCP tool executor", "error", err)
		result.status = model.StageFailed
		result.errMsg = fmt.Sprintf("initializing MCP tools: %v", err)
		e.finishStageExecution(ctx, exec, result)
		return result
	}
	defer func() { _ = closeExecutor() }()

	var nativeOverride map[llmclient.NativeTool]bool
	if in.session.MCPSelection != nil {
		nativeOverride = resolveNativeTools(in.session.MCPSelection.NativeTools)
	}

	execCtx := &agent.ExecutionContext{
		SessionID:           in.session.SessionID,
		StageID:             in.stageID,
		ExecutionID:         executionID,
		AgentName:           displayName,
		AgentIndex:          agentIndex,
		AlertType:           in.session.AlertType,
		AlertData:           in.alertData,
		RunbookContent:      in.runbookContent,
		Config:              resolvedConfig,
		LLMClient:           e.llm,
		ToolExecutor:        toolExecutor,
		Store:               e.store,
		Events:              e.events,
		MCPRegistry:         e.mcpRegistry,
		PromptBuilder:       e.prompts,
		FailedServers:       failedServers,
		ParallelMetadata:    parallelMeta,
		NativeToolsOverride: nativeOverride,
	}

	agentInstance, err := e.agents.CreateAgent(execCtx)
	if err != nil {
		logger.Error("chain: failed to create agent", "error", err)
		result.status = model.StageFailed
		result.errMsg = fmt.Sprintf("creating agent: %v", err)
		e.finishStageExecution(ctx, exec, result)
		return result
	}

	execResult, err := agentInstance.Execute(ctx, execCtx, in.prevContext)
	if err != nil {
		logger.Error("chain: agent execution returned an error", "error", err)
		result.status = model.StageFailed
		result.errMsg = err.Error()
		e.finishStageExecution(ctx, exec, result)
		return result
	}

	// Nothing else ever sets CANCELLED/TIMED_OUT (spec §4.9): whatever the
	// controller guessed gets replaced by the tracker's verdict here.
	if execResult.Status == agent.ExecutionStatusCancelled || execResult.Status == agent.ExecutionStatusTimedOut {
		if e.tracker != nil && e.tracker.IsUserCancel(in.session.SessionID) {
			execResult.Status = agent.ExecutionStatusCancelled
		} else {
			execResult.Status = agent.ExecutionStatusTimedOut
		}
	}

	result.status = mapExecutionStatus(execResult.Status)
	result.finalAnalysis = execResult.FinalAnalysis
	result.pause = execResult.Pause
	if execResult.Error != nil {
		result.errMsg = execResult.Error.Error()
	}

	e.finishStageExecution(ctx, exec, result)
	return result
}

// mapExecutionStatus maps the agent core's terminal status to the stage
// execution's status vocabulary; the two enumerations name the same five
// outcomes under slightly different spellings.
func mapExecutionStatus(s agent.ExecutionStatus) model.StageStatus {
	switch s {
	case agent.ExecutionStatusCompleted:
		return model.StageCompleted
	case agent.ExecutionStatusFailed:
		return model.StageFailed
	case agent.ExecutionStatusTimedOut:
		return model.StageTimedOut
	case agent.ExecutionStatusCancelled:
		return model.StageCancelled
	case agent.ExecutionStatusPaused:
		return model.StagePaused
	default:
		return model.StageFailed
	}
}

// finishStageExecution persists the terminal (or paused) state of exec and
// publishes stage.status. Uses ctx for the store write even when ctx is
// already cancelled/expired is intentional only for the paused/completed
// cases; callers that hit a timeout still want the row finalized, so a
// detached context is used for the write itself.
func (e *Executor) finishStageExecution(ctx context.Context, exec *model.StageExecution, result *agentRunResult) {
	writeCtx := context.Background()
	nowUs := ids.NowMicros()

	exec.Status = result.status
	exec.ErrorMessage = result.errMsg
	if result.finalAnalysis != "" && result.errMsg == "" {
		exec.StageOutput, _ = json.Marshal(map[string]string{"final_analysis": result.finalAnalysis})
	}
	if result.status == model.StagePaused && result.pause != nil {
		// the paused conversation is the resume point (spec §4.7/§8 property
		// 3); stage_output is otherwise reserved for a completed analysis,
		// but a paused stage never has one, so there is no collision.
		exec.StageOutput = result.pause.Conversation
	}

	switch result.status {
	case model.StagePaused:
		exec.PausedAtUs = &nowUs
		exec.CurrentIteration = result.pause.CurrentIteration
	default:
		exec.CompletedAtUs = &nowUs
		if exec.StartedAtUs != nil {
			duration := (nowUs - *exec.StartedAtUs) / 1000
			exec.DurationMs = &duration
		}
	}

	if err := e.store.UpdateStageExecution(writeCtx, exec); err != nil {
		slog.Error("chain: failed to persist stage execution outcome", "execution_id", exec.ExecutionID, "error", err)
	}
	e.publishStageStatus(writeCtx, exec, result.status)
}

// publishStageStatus emits stage.status for exec; publish failures are
// logged, never propagated (event fan-out is best-effort, spec §4.3).
func (e *Executor) publishStageStatus(ctx context.Context, exec *model.StageExecution, status model.StageStatus) {
	if e.events == nil {
		return
	}
	payload := eventbus.StageStatusPayload{
		Type:        eventbus.EventStageStatus,
		SessionID:   exec.SessionID,
		ExecutionID: exec.ExecutionID,
		StageID:     exec.StageID,
		StageIndex:  exec.StageIndex,
		Status:      string(status),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := e.events.Publish(ctx, model.SessionChannel(exec.SessionID), payload); err != nil {
		slog.Warn("chain: failed to publish stage status", "execution_id", exec.ExecutionID, "error", err)
	}
}
