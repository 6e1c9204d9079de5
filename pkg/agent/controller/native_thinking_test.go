package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
)

func TestNativeThinkingController_Run_NoToolCalls_CompletesImmediately(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		textResponse("the deployment has zero replicas available"),
	})
	execCtx := baseExecCtx(client, &fakeToolExecutor{}, 5)

	result, err := NewNativeThinkingController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "the deployment has zero replicas available" {
		t.Errorf("unexpected final analysis: %q", result.FinalAnalysis)
	}
}

func TestNativeThinkingController_Run_ToolCallThenCompletion(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		toolCallResponse("call-1", "kubernetes-server__resources_get", `{"namespace": "default"}`),
		textResponse("found 2 pending pods"),
	})
	executor := &fakeToolExecutor{
		tools: []mcpclient.ToolDefinition{{Name: "kubernetes-server.resources_get"}},
		results: map[string]*mcpclient.ToolResult{
			"kubernetes-server__resources_get": {Name: "kubernetes-server__resources_get", Content: "2 pending pods"},
		},
	}
	execCtx := baseExecCtx(client, executor, 5)

	result, err := NewNativeThinkingController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "found 2 pending pods" {
		t.Errorf("unexpected final analysis: %q", result.FinalAnalysis)
	}
	if len(executor.calls) != 1 || executor.calls[0].Name != "kubernetes-server__resources_get" {
		t.Errorf("expected exactly one tool call with the provider-facing name, got %+v", executor.calls)
	}
}

func TestNativeThinkingController_Run_ToolError_RecordedAsToolMessage(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		toolCallResponse("call-1", "kubernetes-server__resources_get", "{}"),
		textResponse("proceeding without that data"),
	})
	executor := &fakeToolExecutor{err: errors.New("mcp server unreachable")}
	execCtx := baseExecCtx(client, executor, 5)

	result, err := NewNativeThinkingController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected the controller to keep going after a tool error, got %v (err=%v)", result.Status, result.Error)
	}
}

func TestNativeThinkingController_Run_ForcesConclusionAtMaxIterations(t *testing.T) {
	client := startScriptedLLMClient(t, [][]wireResponse{
		toolCallResponse("call-1", "kubernetes-server__resources_get", "{}"),
		textResponse("best guess given the budget: memory pressure"),
	})
	executor := &fakeToolExecutor{
		results: map[string]*mcpclient.ToolResult{
			"kubernetes-server__resources_get": {Name: "kubernetes-server__resources_get", Content: "ok"},
		},
	}
	execCtx := baseExecCtx(client, executor, 1)

	result, err := NewNativeThinkingController().Run(context.Background(), execCtx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != agent.ExecutionStatusCompleted {
		t.Fatalf("expected a forced conclusion to still complete, got %v (err=%v)", result.Status, result.Error)
	}
	if result.FinalAnalysis != "best guess given the budget: memory pressure" {
		t.Errorf("unexpected forced-conclusion answer: %q", result.FinalAnalysis)
	}
}

func TestNativeThinkingController_Run_ListToolsError(t *testing.T) {
	execCtx := baseExecCtx(nil, erroringToolExecutor{err: errors.New("mcp registry unavailable")}, 5)

	_, err := NewNativeThinkingController().Run(context.Background(), execCtx, "")
	if err == nil {
		t.Fatal("expected an error when ListTools fails")
	}
}
