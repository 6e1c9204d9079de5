package controller

import (
	"context"
	"time"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// executeToolCall invokes one tool call via the executor, records it as an
// MCPInteraction, and returns the result alongside any execution error. On
// error, result is nil; the caller decides how to fold that into the
// conversation (ReAct's observation text differs in wording from
// NativeThinking's tool-role message).
func executeToolCall(ctx context.Context, execCtx *agent.ExecutionContext, call model.ToolCall) (*mcpclient.ToolResult, error) {
	start := time.Now()
	serverID, toolName, splitErr := mcpclient.SplitToolName(mcpclient.NormalizeToolName(call.Name))
	if splitErr != nil {
		serverID = ""
		toolName = call.Name
	}

	result, err := execCtx.ToolExecutor.Execute(ctx, call)

	if err != nil {
		recordMCPInteraction(ctx, execCtx, serverID, toolName, marshalArgs(call.Arguments), nil, false, err.Error(), start)
		return nil, err
	}

	recordMCPInteraction(ctx, execCtx, serverID, toolName, marshalArgs(call.Arguments), marshalArgs(result.Content), !result.IsError, errMessageIfTool(result), start)
	return result, nil
}

func errMessageIfTool(result *mcpclient.ToolResult) string {
	if result != nil && result.IsError {
		return result.Content
	}
	return ""
}
