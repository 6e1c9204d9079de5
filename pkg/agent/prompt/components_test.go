package prompt

import (
	"strings"
	"testing"

	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
)

func TestFormatAlertSection(t *testing.T) {
	got := FormatAlertSection("kubernetes", `{"namespace": "default"}`)
	if !strings.Contains(got, "Type: kubernetes") || !strings.Contains(got, `"namespace": "default"`) {
		t.Errorf("unexpected alert section: %q", got)
	}
}

func TestFormatRunbookSection_Empty(t *testing.T) {
	got := FormatRunbookSection("   ")
	if !strings.Contains(got, "No runbook was provided") {
		t.Errorf("expected a no-runbook note, got %q", got)
	}
}

func TestFormatRunbookSection_Provided(t *testing.T) {
	got := FormatRunbookSection("check pod logs first")
	if !strings.Contains(got, "check pod logs first") {
		t.Errorf("expected the runbook content to be included, got %q", got)
	}
}

func TestFormatChainContext_Empty(t *testing.T) {
	if got := FormatChainContext("  \n "); got != "" {
		t.Errorf("expected an empty string for blank prior-stage context, got %q", got)
	}
}

func TestFormatChainContext_Wraps(t *testing.T) {
	got := FormatChainContext("stage 1 found a crashlooping pod")
	if !strings.Contains(got, "CHAIN_CONTEXT_START") || !strings.Contains(got, "stage 1 found a crashlooping pod") || !strings.Contains(got, "CHAIN_CONTEXT_END") {
		t.Errorf("unexpected chain context rendering: %q", got)
	}
}

func TestFormatToolDescriptions_Empty(t *testing.T) {
	if got := FormatToolDescriptions(nil); got != "No tools are available." {
		t.Errorf("unexpected rendering for no tools: %q", got)
	}
}

func TestFormatToolDescriptions_WithSchema(t *testing.T) {
	tools := []mcpclient.ToolDefinition{
		{
			Name:        "kubernetes-server.resources_get",
			Description: "Get a Kubernetes resource",
			ParametersSchema: `{
				"properties": {
					"namespace": {"type": "string", "description": "target namespace"},
					"kind": {"type": "string", "enum": ["Pod", "Deployment"]}
				},
				"required": ["kind"]
			}`,
		},
	}
	got := FormatToolDescriptions(tools)

	if !strings.Contains(got, "1. kubernetes-server.resources_get: Get a Kubernetes resource") {
		t.Errorf("expected a numbered tool header, got %q", got)
	}
	if !strings.Contains(got, "kind (string, required)") {
		t.Errorf("expected the required kind parameter to be rendered, got %q", got)
	}
	if !strings.Contains(got, "choices: Pod, Deployment") {
		t.Errorf("expected enum choices to be rendered, got %q", got)
	}
	if !strings.Contains(got, "namespace (string, optional): target namespace") {
		t.Errorf("expected the optional namespace parameter with its description, got %q", got)
	}
}

func TestFormatToolDescriptions_NoDescription_NoSchema(t *testing.T) {
	tools := []mcpclient.ToolDefinition{{Name: "kubernetes-server.ping"}}
	got := FormatToolDescriptions(tools)
	if !strings.Contains(got, "1. kubernetes-server.ping") {
		t.Errorf("expected a bare tool name, got %q", got)
	}
}

func TestFormatToolDescriptions_MultipleToolsNumbered(t *testing.T) {
	tools := []mcpclient.ToolDefinition{
		{Name: "kubernetes-server.resources_get"},
		{Name: "kubernetes-server.logs_get"},
	}
	got := FormatToolDescriptions(tools)
	if !strings.Contains(got, "1. kubernetes-server.resources_get") || !strings.Contains(got, "2. kubernetes-server.logs_get") {
		t.Errorf("expected both tools to be numbered in order, got %q", got)
	}
}
