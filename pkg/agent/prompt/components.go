package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
)

// FormatAlertSection renders the alert payload for the user message.
func FormatAlertSection(alertType, alertData string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Alert\n\nType: %s\n\n%s", alertType, alertData)
	return b.String()
}

// FormatRunbookSection renders the runbook, or a note that none was
// supplied — the LLM should not assume silence means "check anyway".
func FormatRunbookSection(runbookContent string) string {
	if strings.TrimSpace(runbookContent) == "" {
		return "## Runbook\n\nNo runbook was provided for this alert type."
	}
	return "## Runbook\n\n" + runbookContent
}

// FormatChainContext wraps the prior stages' combined output in markers the
// LLM is told to treat as background, not as something to re-investigate.
func FormatChainContext(prevStageContext string) string {
	if strings.TrimSpace(prevStageContext) == "" {
		return ""
	}
	return "## Previous Stage Findings\n\n<!-- CHAIN_CONTEXT_START -->\n" +
		prevStageContext + "\n<!-- CHAIN_CONTEXT_END -->"
}

// FormatToolDescriptions renders the available tools as a numbered
// reference list, deriving parameter hints from each tool's JSON-schema
// ParametersSchema. Key ordering inside a tool's parameter list is sorted
// so the rendered prompt is deterministic across runs.
func FormatToolDescriptions(tools []mcpclient.ToolDefinition) string {
	if len(tools) == 0 {
		return "No tools are available."
	}
	var b strings.Builder
	for i, t := range tools {
		fmt.Fprintf(&b, "%d. %s", i+1, t.Name)
		if t.Description != "" {
			fmt.Fprintf(&b, ": %s", t.Description)
		}
		b.WriteString("\n")
		if params := extractParameters(t.ParametersSchema); params != "" {
			b.WriteString(params)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractParameters renders a tool's serialized JSON-schema "properties"
// map as an indented parameter list, noting required/optional, type,
// description, default, and enum choices where present.
func extractParameters(schemaJSON string) string {
	if strings.TrimSpace(schemaJSON) == "" {
		return ""
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return ""
	}
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	required := map[string]bool{}
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, name := range keys {
		def, _ := props[name].(map[string]any)
		reqTag := "optional"
		if required[name] {
			reqTag = "required"
		}
		typeName, _ := def["type"].(string)
		if typeName == "" {
			typeName = "any"
		}
		fmt.Fprintf(&b, "   - %s (%s, %s)", name, typeName, reqTag)
		if desc, ok := def["description"].(string); ok && desc != "" {
			fmt.Fprintf(&b, ": %s", desc)
		}
		if dflt, ok := def["default"]; ok {
			fmt.Fprintf(&b, " [default: %v]", dflt)
		}
		if enum, ok := def["enum"].([]any); ok && len(enum) > 0 {
			choices := make([]string, len(enum))
			for i, e := range enum {
				choices[i] = fmt.Sprintf("%v", e)
			}
			fmt.Fprintf(&b, " (choices: %s)", strings.Join(choices, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
