package prompt

import (
	"strings"
	"testing"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

func TestNewBuilder_NilConfigPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected NewBuilder(nil) to panic")
		}
	}()
	NewBuilder(nil)
}

func testExecCtx() *agent.ExecutionContext {
	return &agent.ExecutionContext{
		AlertType:      "kubernetes",
		AlertData:      `{"namespace": "default", "pod": "api-7f8"}`,
		RunbookContent: "check recent deployments first",
		Config: &config.ResolvedAgentConfig{
			MCPServers:         []string{"kubernetes-server"},
			CustomInstructions: "escalate to on-call if data loss is suspected",
		},
		ToolSelectionHints: "prefer namespace-scoped queries",
	}
}

func TestBuildReActMessages(t *testing.T) {
	b := NewBuilder(&config.Config{MCPServerRegistry: config.NewMCPServerRegistry(nil)})
	tools := []mcpclient.ToolDefinition{{Name: "kubernetes-server.resources_get", Description: "list resources"}}

	msgs := b.BuildReActMessages(testExecCtx(), "stage 1 found high memory usage", tools)
	if len(msgs) != 2 {
		t.Fatalf("expected a [system, user] pair, got %d messages", len(msgs))
	}
	if msgs[0].Role != model.RoleSystem || msgs[1].Role != model.RoleUser {
		t.Fatalf("unexpected roles: %v, %v", msgs[0].Role, msgs[1].Role)
	}

	system := msgs[0].Content
	for _, want := range []string{"ReAct framework", "kubernetes-server.resources_get: list resources", "prefer namespace-scoped queries", "escalate to on-call if data loss is suspected"} {
		if !strings.Contains(system, want) {
			t.Errorf("expected system prompt to contain %q, got:\n%s", want, system)
		}
	}

	user := msgs[1].Content
	for _, want := range []string{"Type: kubernetes", "check recent deployments first", "stage 1 found high memory usage", "Use the available tools to investigate"} {
		if !strings.Contains(user, want) {
			t.Errorf("expected user prompt to contain %q, got:\n%s", want, user)
		}
	}
}

func TestBuildNativeThinkingMessages_OmitsToolDescriptions(t *testing.T) {
	b := NewBuilder(&config.Config{MCPServerRegistry: config.NewMCPServerRegistry(nil)})

	msgs := b.BuildNativeThinkingMessages(testExecCtx(), "")
	if len(msgs) != 2 {
		t.Fatalf("expected a [system, user] pair, got %d messages", len(msgs))
	}
	if strings.Contains(msgs[0].Content, "Available Tools") {
		t.Errorf("native thinking system prompt should not render a tool list, got:\n%s", msgs[0].Content)
	}
}

func TestBuildSynthesisMessages_NoMCPInstructions(t *testing.T) {
	b := NewBuilder(&config.Config{MCPServerRegistry: config.NewMCPServerRegistry(map[string]*config.MCPServerConfig{
		"kubernetes-server": {Instructions: "should never appear"},
	})})
	execCtx := testExecCtx()

	msgs := b.BuildSynthesisMessages(execCtx, "stage 1: high memory. stage 2: disk pressure.")
	if strings.Contains(msgs[0].Content, "should never appear") {
		t.Errorf("synthesis system prompt should never include MCP server instructions, got:\n%s", msgs[0].Content)
	}
	if !strings.Contains(msgs[0].Content, "Incident Commander synthesizing") {
		t.Errorf("expected synthesis framing, got:\n%s", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "stage 1: high memory. stage 2: disk pressure.") {
		t.Errorf("expected prior-stage context in the synthesis user message, got:\n%s", msgs[1].Content)
	}
}

func TestBuildForcedConclusionPrompt_React(t *testing.T) {
	b := NewBuilder(&config.Config{})
	got := b.BuildForcedConclusionPrompt(5, config.IterationStrategyReact)
	if !strings.Contains(got, "5 iterations") || !strings.Contains(got, "ReAct format") {
		t.Errorf("unexpected react forced-conclusion prompt: %q", got)
	}
}

func TestBuildForcedConclusionPrompt_NativeThinking(t *testing.T) {
	b := NewBuilder(&config.Config{})
	got := b.BuildForcedConclusionPrompt(3, config.IterationStrategyNativeThinking)
	if !strings.Contains(got, "3 iterations") || !strings.Contains(got, "plain text") {
		t.Errorf("unexpected native-thinking forced-conclusion prompt: %q", got)
	}
}

func TestBuildExecutiveSummaryPrompts(t *testing.T) {
	b := NewBuilder(&config.Config{})
	system := b.BuildExecutiveSummarySystemPrompt()
	if !strings.Contains(system, "executive summaries") {
		t.Errorf("unexpected executive summary system prompt: %q", system)
	}

	user := b.BuildExecutiveSummaryUserPrompt("The root cause was a memory leak in the payment service.")
	if !strings.Contains(user, "The root cause was a memory leak in the payment service.") {
		t.Errorf("expected user prompt to contain the final analysis, got:\n%s", user)
	}
}

func TestBuildMCPSummarizationPrompts(t *testing.T) {
	b := NewBuilder(&config.Config{})
	system := b.BuildMCPSummarizationSystemPrompt("kubernetes-server", "logs_get", 300)
	if !strings.Contains(system, `"kubernetes-server"`) || !strings.Contains(system, `"logs_get"`) || !strings.Contains(system, "300 tokens") {
		t.Errorf("unexpected summarization system prompt: %q", system)
	}

	user := b.BuildMCPSummarizationUserPrompt("prior context", "kubernetes-server", "logs_get", "raw tool output")
	if !strings.Contains(user, "prior context") || !strings.Contains(user, "kubernetes-server.logs_get") || !strings.Contains(user, "raw tool output") {
		t.Errorf("unexpected summarization user prompt: %q", user)
	}
}
