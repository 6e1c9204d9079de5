package chain

import (
	"context"
	"sync"
	"testing"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// fakeTools is a ToolExecutorFactory that never touches a real transport.
type fakeTools struct{}

func (fakeTools) Create(_ context.Context, _ []string, _ map[string][]string) (mcpclient.ToolExecutor, map[string]string, func() error, error) {
	return nil, nil, func() error { return nil }, nil
}

// fakeTracker is a CancellationTracker whose verdict is fixed per test.
type fakeTracker struct{ userCancelled map[string]bool }

func (f fakeTracker) IsUserCancel(sessionID string) bool { return f.userCancelled[sessionID] }

// fakePromptBuilder satisfies fullPromptBuilder with empty implementations;
// none of these are exercised by runAgent itself (the fake Agent never
// consults execCtx.PromptBuilder).
type fakePromptBuilder struct{}

func (fakePromptBuilder) BuildReActMessages(*agent.ExecutionContext, string, []mcpclient.ToolDefinition) []model.Message {
	return nil
}
func (fakePromptBuilder) BuildNativeThinkingMessages(*agent.ExecutionContext, string) []model.Message {
	return nil
}
func (fakePromptBuilder) BuildSynthesisMessages(*agent.ExecutionContext, string) []model.Message {
	return nil
}
func (fakePromptBuilder) BuildForcedConclusionPrompt(int, config.IterationStrategy) string { return "" }
func (fakePromptBuilder) BuildMCPSummarizationSystemPrompt(string, string, int) string      { return "" }
func (fakePromptBuilder) BuildMCPSummarizationUserPrompt(string, string, string, string) string {
	return ""
}
func (fakePromptBuilder) BuildExecutiveSummarySystemPrompt() string { return "summarize" }
func (fakePromptBuilder) BuildExecutiveSummaryUserPrompt(finalAnalysis string) string {
	return "summarize: " + finalAnalysis
}

// scriptedAgent returns a fixed ExecutionResult regardless of input.
type scriptedAgent struct{ result *agent.ExecutionResult }

func (s scriptedAgent) Execute(context.Context, *agent.ExecutionContext, string) (*agent.ExecutionResult, error) {
	return s.result, nil
}
func (s scriptedAgent) ToolSelectionHints() string { return "" }

// scriptedAgentFactory hands out agents by AgentName, falling back to a
// default result when no per-name script exists.
type scriptedAgentFactory struct {
	mu      sync.Mutex
	byName  map[string]*agent.ExecutionResult
	fallback *agent.ExecutionResult
}

func (f *scriptedAgentFactory) CreateAgent(execCtx *agent.ExecutionContext) (agent.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byName[execCtx.AgentName]; ok {
		return scriptedAgent{result: r}, nil
	}
	return scriptedAgent{result: f.fallback}, nil
}

func newTestExecutor(cfg *config.Config, st store.Store, factory *scriptedAgentFactory, tracker CancellationTracker) *Executor {
	return &Executor{
		cfg:         cfg,
		store:       st,
		events:      nil,
		llm:         nil,
		tools:       fakeTools{},
		agents:      factory,
		prompts:     fakePromptBuilder{},
		mcpRegistry: cfg.MCPServerRegistry,
		tracker:     tracker,
	}
}

func testConfig() *config.Config {
	agents := map[string]*config.AgentConfig{
		"A":               {IterationStrategy: config.IterationStrategyReact},
		"B":               {IterationStrategy: config.IterationStrategyReact},
		"KubernetesAgent": {IterationStrategy: config.IterationStrategyReact},
	}
	providers := map[string]*config.LLMProviderConfig{
		"default-provider": {Type: config.LLMProviderTypeAnthropic, Model: "claude", MaxToolResultTokens: 50000},
	}
	return &config.Config{
		Defaults:            &config.Defaults{LLMProvider: "default-provider", IterationStrategy: config.IterationStrategyReact},
		AgentRegistry:       config.NewAgentRegistry(agents),
		MCPServerRegistry:   config.NewMCPServerRegistry(nil),
		LLMProviderRegistry: config.NewLLMProviderRegistry(providers),
	}
}

func newTestSession(chain *config.ChainConfig, alertData string) *model.Session {
	snapshot := &Snapshot{Chain: chain, AlertData: alertData, RunbookContent: "runbook text"}
	raw, err := EncodeSnapshot(snapshot)
	if err != nil {
		panic(err)
	}
	return &model.Session{
		SessionID:       ids.New(),
		AlertID:         ids.New(),
		AlertType:       "kubernetes",
		ChainID:         "test-chain",
		ChainDefinition: raw,
		Status:          model.SessionInProgress,
		StartedAtUs:     ids.NowMicros(),
	}
}

func TestExecutor_Run_SingleStageCompletes(t *testing.T) {
	chain := &config.ChainConfig{
		Stages: []config.StageConfig{
			{Name: "investigate", Agents: []config.StageAgentConfig{{Name: "KubernetesAgent"}}},
		},
	}
	session := newTestSession(chain, `{"pod":"web-1"}`)

	factory := &scriptedAgentFactory{
		fallback: &agent.ExecutionResult{Status: agent.ExecutionStatusCompleted, FinalAnalysis: "pod crashed due to OOM"},
	}
	exec := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{})

	result := exec.Run(context.Background(), session)
	if result.Status != model.SessionCompleted {
		t.Fatalf("expected SessionCompleted, got %s (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "pod crashed due to OOM" {
		t.Errorf("unexpected final analysis: %q", result.FinalAnalysis)
	}
}

func TestExecutor_Run_StageFailureStopsChain(t *testing.T) {
	chain := &config.ChainConfig{
		Stages: []config.StageConfig{
			{Name: "investigate", Agents: []config.StageAgentConfig{{Name: "A"}}},
			{Name: "remediate", Agents: []config.StageAgentConfig{{Name: "B"}}},
		},
	}
	session := newTestSession(chain, `{}`)

	factory := &scriptedAgentFactory{
		byName: map[string]*agent.ExecutionResult{
			"A": {Status: agent.ExecutionStatusFailed, Error: assertErr("boom")},
		},
		fallback: &agent.ExecutionResult{Status: agent.ExecutionStatusCompleted, FinalAnalysis: "should not run"},
	}
	exec := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{})

	result := exec.Run(context.Background(), session)
	if result.Status != model.SessionFailed {
		t.Fatalf("expected SessionFailed, got %s", result.Status)
	}
}

func TestExecutor_Run_CancelledReclassifiedByTracker(t *testing.T) {
	chain := &config.ChainConfig{
		Stages: []config.StageConfig{{Name: "investigate", Agents: []config.StageAgentConfig{{Name: "A"}}}},
	}
	session := newTestSession(chain, `{}`)

	factory := &scriptedAgentFactory{
		fallback: &agent.ExecutionResult{Status: agent.ExecutionStatusCancelled},
	}

	// Tracker says this session was NOT user-cancelled: a raw "cancelled"
	// guess from the agent core must be downgraded to TIMED_OUT (spec §4.9).
	exec := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{userCancelled: map[string]bool{}})
	result := exec.Run(context.Background(), session)
	if result.Status != model.SessionTimedOut {
		t.Fatalf("expected SessionTimedOut when tracker denies user cancel, got %s", result.Status)
	}

	session2 := newTestSession(chain, `{}`)
	exec2 := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{userCancelled: map[string]bool{session2.SessionID: true}})
	result2 := exec2.Run(context.Background(), session2)
	if result2.Status != model.SessionCancelled {
		t.Fatalf("expected SessionCancelled when tracker confirms user cancel, got %s", result2.Status)
	}
}

func TestExecutor_Run_ParallelStageAggregatesPartial(t *testing.T) {
	chain := &config.ChainConfig{
		Stages: []config.StageConfig{
			{
				Name:          "parallel-investigate",
				SuccessPolicy: config.SuccessPolicyAny,
				Agents: []config.StageAgentConfig{
					{Name: "A"}, {Name: "B"},
				},
			},
		},
	}
	session := newTestSession(chain, `{}`)

	factory := &scriptedAgentFactory{
		byName: map[string]*agent.ExecutionResult{
			"A": {Status: agent.ExecutionStatusCompleted, FinalAnalysis: "A succeeded"},
			"B": {Status: agent.ExecutionStatusFailed, Error: assertErr("B failed")},
		},
	}
	exec := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{})

	result := exec.Run(context.Background(), session)
	if result.Status != model.SessionCompleted {
		t.Fatalf("ANY policy with one success should let the chain complete, got %s (err=%v)", result.Status, result.Error)
	}
}

func TestExecutor_Run_ParallelStageAllPolicyStopsOnPartial(t *testing.T) {
	chain := &config.ChainConfig{
		Stages: []config.StageConfig{
			{
				Name:          "parallel-investigate",
				SuccessPolicy: config.SuccessPolicyAll,
				Agents: []config.StageAgentConfig{
					{Name: "A"}, {Name: "B"},
				},
			},
		},
	}
	session := newTestSession(chain, `{}`)

	factory := &scriptedAgentFactory{
		byName: map[string]*agent.ExecutionResult{
			"A": {Status: agent.ExecutionStatusCompleted, FinalAnalysis: "A succeeded"},
			"B": {Status: agent.ExecutionStatusFailed, Error: assertErr("B failed")},
		},
	}
	exec := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{})

	result := exec.Run(context.Background(), session)
	if result.Status != model.SessionFailed {
		t.Fatalf("ALL policy with one failure should fail the chain, got %s", result.Status)
	}
}

func TestExecutor_Run_PausedStagePausesSession(t *testing.T) {
	chain := &config.ChainConfig{
		Stages: []config.StageConfig{{Name: "investigate", Agents: []config.StageAgentConfig{{Name: "A"}}}},
	}
	session := newTestSession(chain, `{}`)

	factory := &scriptedAgentFactory{
		fallback: &agent.ExecutionResult{
			Status: agent.ExecutionStatusPaused,
			Pause:  &agent.PauseState{Reason: "max_iterations", CurrentIteration: 20},
		},
	}
	exec := newTestExecutor(testConfig(), store.NewMemory(), factory, fakeTracker{})

	result := exec.Run(context.Background(), session)
	if result.Status != model.SessionPaused {
		t.Fatalf("expected SessionPaused, got %s", result.Status)
	}
	if result.Pause == nil || result.Pause.Reason != "max_iterations" {
		t.Errorf("expected pause state to be carried through, got %+v", result.Pause)
	}
}

func assertErr(msg string) error { return errString(msg) }

type errString string

func (e errString) Error() string { return string(e) }
