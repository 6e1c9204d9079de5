package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

func TestReActController_Run_FinalAnswerOnFirstIteration(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		textResponse("Thought: clear\nFinal Answer: the pod OOM-killed due to a memory limit"),
	})
	executor := &fakeToolExecutor{}
	execCtx := baseExecCtx(client, executor, 5)

	result, err := NewReActController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "the pod OOM-killed due to a memory limit" {
		t.Errorf("unexpected final analysis: %q", result.FinalAnalysis)
	}
}

func TestReActController_Run_ToolCallThenFinalAnswer(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		textResponse("Thought: need pod list\nAction: kubernetes-server.resources_get\nAction Input: {\"namespace\": \"default\"}"),
		textResponse("Thought: now I know\nFinal Answer: 3 pods are crashlooping"),
	})
	executor := &fakeToolExecutor{
		tools: []mcpclient.ToolDefinition{{Name: "kubernetes-server.resources_get", Description: "list resources"}},
		results: map[string]*mcpclient.ToolResult{
			"kubernetes-server.resources_get": {Name: "kubernetes-server.resources_get", Content: "3 pods, all crashlooping"},
		},
	}
	execCtx := baseExecCtx(client, executor, 5)

	result, err := NewReActController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "3 pods are crashlooping" {
		t.Errorf("unexpected final analysis: %q", result.FinalAnalysis)
	}
	if len(executor.calls) != 1 || executor.calls[0].Name != "kubernetes-server.resources_get" {
		t.Errorf("expected exactly one tool call, got %+v", executor.calls)
	}

	store := execCtx.Store.(*fakeStore)
	if len(store.llmInteractions) != 2 {
		t.Errorf("expected 2 recorded LLM interactions, got %d", len(store.llmInteractions))
	}
	if len(store.mcpInteractions) != 1 {
		t.Errorf("expected 1 recorded MCP interaction, got %d", len(store.mcpInteractions))
	}
}

func TestReActController_Run_UnknownTool_GetsObservationAndContinues(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		textResponse("Thought: let's try\nAction: kubernetes-server.nonexistent_tool\nAction Input: {}"),
		textResponse("Thought: ok\nFinal Answer: done anyway"),
	})
	executor := &fakeToolExecutor{
		tools: []mcpclient.ToolDefinition{{Name: "kubernetes-server.resources_get"}},
	}
	execCtx := baseExecCtx(client, executor, 5)

	result, err := NewReActController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", result.Status, result.Error)
	}
	if len(executor.calls) != 0 {
		t.Errorf("expected no tool calls for an unknown tool name, got %+v", executor.calls)
	}
}

func TestReActController_Run_ForcesConclusionAtMaxIterations(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		textResponse("Thought: still investigating\nAction: kubernetes-server.resources_get\nAction Input: {}"),
		textResponse("Thought: best guess given the budget\nFinal Answer: likely an OOM kill"),
	})
	executor := &fakeToolExecutor{
		tools:   []mcpclient.ToolDefinition{{Name: "kubernetes-server.resources_get"}},
		results: map[string]*mcpclient.ToolResult{"kubernetes-server.resources_get": {Name: "kubernetes-server.resources_get", Content: "ok"}},
	}
	execCtx := baseExecCtx(client, executor, 1)

	result, err := NewReActController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected a forced conclusion to still complete, got %v (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "likely an OOM kill" {
		t.Errorf("unexpected forced-conclusion answer: %q", result.FinalAnalysis)
	}
}

func TestReActController_Run_ForcedConclusionAfterFailedLastInteraction_Fails(t *testing.T) {
	executor := &fakeToolExecutor{err: errors.New("mcp unreachable")}
	client := startScriptedLLMClient(t, [][]wireResponse{
		textResponse("Thought: need pods\nAction: kubernetes-server.resources_get\nAction Input: {}"),
	})
	executor.tools = []mcpclient.ToolDefinition{{Name: "kubernetes-server.resources_get"}}
	execCtx := baseExecCtx(client, executor, 1)

	result, err := NewReActController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusFailed {
		t.Fatalf("expected Failed when the budget runs out right after a failed interaction, got %v", result.Status)
	}
}

func TestReActController_Run_ListToolsError(t *testing.T) {
	executor := &fakeToolExecutor{}
	execCtx := baseExecCtx(nil, executor, 5)
	execCtx.ToolExecutor = erroringToolExecutor{err: errors.New("mcp registry unavailable")}

	_, err := NewReActController().Run(context.Background(), execCtx, "")
	if err == nil {
		t.Fatal("expected an error when ListTools fails")
	}
}

type erroringToolExecutor struct{ err error }

func (e erroringToolExecutor) Execute(ctx context.Context, call model.ToolCall) (*mcpclient.ToolResult, error) {
	return nil, e.err
}
func (e erroringToolExecutor) ListTools(ctx context.Context) ([]mcpclient.ToolDefinition, error) {
	return nil, e.err
}
func (e erroringToolExecutor) Close() error { return nil }
