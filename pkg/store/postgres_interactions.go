package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

func encodeConversation(msgs []model.Message) ([]byte, error) {
	return json.Marshal(msgs)
}

// CreateLLMInteraction appends an LLM interaction row. These are
// append-only (spec §4.2): no UpdateLLMInteraction exists.
func (p *Postgres) CreateLLMInteraction(ctx context.Context, i *model.LLMInteraction) error {
	if i.InteractionID == "" {
		i.InteractionID = ids.New()
	}
	if i.TimestampUs == 0 {
		i.TimestampUs = ids.NowMicros()
	}
	conv, err := encodeConversation(i.Conversation)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	const q = `
INSERT INTO llm_interactions (
  interaction_id, session_id, stage_execution_id, timestamp_us, conversation,
  model_name, provider, interaction_type, response_metadata, native_tools_config,
  thinking_content, mcp_event_id, duration_ms, step_description
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err = p.pool.Exec(ctx, q,
		i.InteractionID, i.SessionID, nullStr(i.StageExecutionID), i.TimestampUs, conv,
		i.ModelName, i.Provider, i.InteractionType, i.ResponseMetadata, i.NativeToolsConfig,
		nullStr(i.ThinkingContent), nullStr(i.MCPEventID), i.DurationMs, i.StepDescription,
	)
	if err != nil {
		return fmt.Errorf("create llm interaction: %w", err)
	}
	return nil
}

// CreateMCPInteraction appends an MCP interaction row (tool list or tool
// call). Append-only, same as LLM interactions.
func (p *Postgres) CreateMCPInteraction(ctx context.Context, i *model.MCPInteraction) error {
	if i.RequestID == "" {
		i.RequestID = ids.New()
	}
	if i.TimestampUs == 0 {
		i.TimestampUs = ids.NowMicros()
	}

	const q = `
INSERT INTO mcp_interactions (
  request_id, session_id, stage_execution_id, timestamp_us, server_name,
  communication_type, tool_name, tool_arguments, tool_result, available_tools,
  duration_ms, success, error_message
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err := p.pool.Exec(ctx, q,
		i.RequestID, i.SessionID, nullStr(i.StageExecutionID), i.TimestampUs, i.ServerName,
		i.CommunicationType, nullStr(i.ToolName), i.ToolArguments, i.ToolResult, i.AvailableTools,
		i.DurationMs, i.Success, i.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("create mcp interaction: %w", err)
	}
	return nil
}
