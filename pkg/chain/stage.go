package chain

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// tracer emits one span per stage execution (spec §4.8), named after the
// module path the way the registry package in the goa-ai runtime does it.
var tracer = otel.Tracer("github.com/tarsy-project/tarsy-core/pkg/chain")

// stageOutcome is one stage's terminal state, whatever its shape (single
// agent, parallel fan-out, or synthesis).
type stageOutcome struct {
	status             model.StageStatus
	finalAnalysis      string
	errMsg             string
	pause              *agent.PauseState
	pausedExecutionID  string
}

// executeStage dispatches stageCfg to a single-agent run, a synthesis run,
// or a parallel fan-out, per spec §4.8. stageID is a stable per-stage
// identifier derived from its position and name, since chain config carries
// no separate id field of its own.
func (e *Executor) executeStage(
	ctx context.Context,
	session *model.Session,
	chainCfg *config.ChainConfig,
	stageCfg config.StageConfig,
	stageIndex int,
	prevContext string,
	alertData, runbookContent string,
) *stageOutcome {
	stageID := fmt.Sprintf("%d-%s", stageIndex, stageCfg.Name)

	ctx, span := tracer.Start(ctx, "chain.stage",
		trace.WithAttributes(
			attribute.String("tarsy.session_id", session.SessionID),
			attribute.String("tarsy.stage_id", stageID),
			attribute.Int("tarsy.stage_index", stageIndex),
		),
	)
	defer span.End()

	base := agentRunInput{
		session:        session,
		chain:          chainCfg,
		stage:          stageCfg,
		stageID:        stageID,
		stageIndex:     stageIndex,
		alertData:      alertData,
		runbookContent: runbookContent,
		prevContext:    prevContext,
	}

	outcome := e.runStage(ctx, base, stageCfg)
	if outcome.status == model.StageFailed {
		span.SetStatus(codes.Error, outcome.errMsg)
	} else {
		span.SetStatus(codes.Ok, string(outcome.status))
	}
	return outcome
}

// runStage picks single-agent, synthesis, or parallel-fan-out execution for
// one stage, once its agentRunInput base and span are already set up.
func (e *Executor) runStage(ctx context.Context, base agentRunInput, stageCfg config.StageConfig) *stageOutcome {
	if stageCfg.Synthesis != nil {
		stageAgent := config.StageAgentConfig{
			Name:              stageCfg.Synthesis.Agent,
			LLMProvider:       stageCfg.Synthesis.LLMProvider,
			IterationStrategy: stageCfg.Synthesis.IterationStrategy,
		}
		r := e.runAgent(ctx, base, stageAgent, 0, stageAgent.Name, nil)
		return singleOutcome(r)
	}

	replicas := stageCfg.Replicas
	if replicas < 1 {
		replicas = 1
	}
	totalChildren := len(stageCfg.Agents) * replicas
	if totalChildren <= 0 {
		totalChildren = 1
	}

	if totalChildren == 1 && len(stageCfg.Agents) <= 1 {
		var stageAgent config.StageAgentConfig
		displayName := "agent"
		if len(stageCfg.Agents) == 1 {
			stageAgent = stageCfg.Agents[0]
			displayName = stageAgent.Name
		}
		r := e.runAgent(ctx, base, stageAgent, 0, displayName, nil)
		return singleOutcome(r)
	}

	return e.executeParallelStage(ctx, base, stageCfg, replicas)
}

// singleOutcome adapts one agentRunResult into a stageOutcome for a
// non-parallel stage, where the stage IS that single execution.
func singleOutcome(r *agentRunResult) *stageOutcome {
	return &stageOutcome{
		status:            r.status,
		finalAnalysis:     r.finalAnalysis,
		errMsg:            r.errMsg,
		pause:             r.pause,
		pausedExecutionID: r.executionID,
	}
}

// executeParallelStage fans stageCfg's agents out across replicas children,
// running them concurrently, then aggregates per spec §4.8's fixed rule.
// Each agent definition repeats `replicas` times (parallel_index 1..N across
// the whole fan-out, not reset per agent).
func (e *Executor) executeParallelStage(
	ctx context.Context,
	base agentRunInput,
	stageCfg config.StageConfig,
	replicas int,
) *stageOutcome {
	type child struct {
		index       int
		stageAgent  config.StageAgentConfig
		displayName string
	}

	var children []child
	idx := 1
	for _, sa := range stageCfg.Agents {
		for r := 0; r < replicas; r++ {
			name := sa.Name
			if replicas > 1 {
				name = fmt.Sprintf("%s[%d]", sa.Name, r+1)
			}
			children = append(children, child{index: idx, stageAgent: sa, displayName: name})
			idx++
		}
	}

	parentExecutionID := ids.New()
	parentType := model.ParallelMulti
	if replicas > 1 && len(stageCfg.Agents) == 1 {
		parentType = model.ParallelReplica
	}
	startedAt := ids.NowMicros()
	parent := &model.StageExecution{
		ExecutionID:       parentExecutionID,
		SessionID:         base.session.SessionID,
		StageID:           base.stageID,
		StageIndex:        base.stageIndex,
		StageName:         stageCfg.Name,
		Agent:             stageCfg.Name,
		Status:            model.StageActive,
		StartedAtUs:       &startedAt,
		ParallelType:      parentType,
	}
	if err := e.store.CreateStageExecution(ctx, parent); err != nil {
		return &stageOutcome{status: model.StageFailed, errMsg: fmt.Sprintf("creating parallel stage parent: %v", err)}
	}
	e.publishStageStatus(ctx, parent, model.StageActive)

	base.parentExecutionID = parentExecutionID
	results := make([]*agentRunResult, len(children))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range children {
		i, c := i, c
		g.Go(func() error {
			meta := &llmclient.ParallelMetadata{
				ParentStageExecutionID: parentExecutionID,
				ParallelIndex:          c.index,
				AgentName:              c.displayName,
			}
			results[i] = e.runAgent(gctx, base, c.stageAgent, c.index, c.displayName, meta)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]childOutcome, len(results))
	for i, r := range results {
		outcomes[i] = childOutcome{agentName: r.agentName, status: r.status, errMsg: r.errMsg}
	}

	status := aggregateStatus(outcomes)
	out := &stageOutcome{status: status}

	switch status {
	case model.StagePartial:
		if continuesChain(resolveSuccessPolicy(stageCfg, e.cfg.Defaults), outcomes) {
			// a PARTIAL success under an ANY policy still reports PARTIAL to
			// the stage execution row, but the chain carries on: collect the
			// completed children's analyses as this stage's contribution.
			out.finalAnalysis = combineCompletedAnalyses(results)
		}
		out.errMsg = aggregateError(outcomes)
	case model.StageCompleted:
		out.finalAnalysis = combineCompletedAnalyses(results)
	case model.StageFailed, model.StageCancelled, model.StageTimedOut:
		out.errMsg = aggregateError(outcomes)
	case model.StagePaused:
		for _, r := range results {
			if r.status == model.StagePaused {
				out.pause = r.pause
				out.pausedExecutionID = r.executionID
				break
			}
		}
	}

	e.finishParallelParent(parent, out)
	return out
}

// finishParallelParent persists the aggregated status onto the parent
// StageExecution row and publishes it, using a detached context the same
// way finishStageExecution does for its own writes.
func (e *Executor) finishParallelParent(parent *model.StageExecution, out *stageOutcome) {
	writeCtx := context.Background()
	nowUs := ids.NowMicros()

	parent.Status = out.status
	parent.ErrorMessage = out.errMsg
	switch out.status {
	case model.StagePaused:
		parent.PausedAtUs = &nowUs
	default:
		parent.CompletedAtUs = &nowUs
		if parent.StartedAtUs != nil {
			duration := (nowUs - *parent.StartedAtUs) / 1000
			parent.DurationMs = &duration
		}
	}

	if err := e.store.UpdateStageExecution(writeCtx, parent); err != nil {
		slog.Error("chain: failed to persist parallel stage parent outcome", "execution_id", parent.ExecutionID, "error", err)
	}
	e.publishStageStatus(writeCtx, parent, out.status)
}

// combineCompletedAnalyses concatenates completed children's final analyses
// for the next stage's chain context.
func combineCompletedAnalyses(results []*agentRunResult) string {
	var findings []stageFinding
	for _, r := range results {
		if r.status == model.StageCompleted {
			findings = append(findings, stageFinding{stageName: r.agentName, finalAnalysis: r.finalAnalysis})
		}
	}
	return buildChainContext(findings)
}
