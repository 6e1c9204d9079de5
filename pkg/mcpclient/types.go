package mcpclient

import (
	"context"

	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// ToolResult is what Execute returns for one tool call. Content is always
// the structural "result" text after masking (and, at the controller level,
// summarization); IsError reports whether the tool itself signalled failure
// — which is conveyed as content, not a Go error, matching MCP convention.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// ToolDefinition describes one callable tool for inclusion in an agent's
// available-tools listing.
type ToolDefinition struct {
	Name             string // "server.tool"
	Description      string
	ParametersSchema string // JSON schema, serialized
}

// ToolExecutor is the agent-facing seam for invoking MCP tools. A session's
// iteration controller calls Execute once per requested tool call and
// ListTools once per iteration (or per stage) to build the available-tools
// prompt section.
type ToolExecutor interface {
	Execute(ctx context.Context, call model.ToolCall) (*ToolResult, error)
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	Close() error
}
