package llmclient

import "github.com/tarsy-project/tarsy-core/pkg/model"

// The wire* types are this client's request/response envelope to the
// out-of-process provider adapter. They travel over grpc using the JSON
// codec registered in client.go rather than generated protobuf stubs, so a
// oneof-shaped response is modeled as a struct of optional pointer fields
// (exactly one populated per message), mirroring how protojson renders one.

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
}

type wireToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	ParametersSchema string `json:"parameters_schema"`
}

type wireProviderConfig struct {
	Type                string          `json:"type"`
	Model               string          `json:"model"`
	APIKeyEnv           string          `json:"api_key_env,omitempty"`
	CredentialsEnv      string          `json:"credentials_env,omitempty"`
	BaseURL             string          `json:"base_url,omitempty"`
	VerifySSL           *bool           `json:"verify_ssl,omitempty"`
	MaxToolResultTokens int             `json:"max_tool_result_tokens,omitempty"`
	Project             string          `json:"project,omitempty"`
	Location            string          `json:"location,omitempty"`
	NativeTools         map[string]bool `json:"native_tools,omitempty"`
}

type wireRequest struct {
	SessionID        string              `json:"session_id"`
	StageExecutionID string              `json:"stage_execution_id"`
	Messages         []wireMessage       `json:"messages"`
	Tools            []wireTool          `json:"tools,omitempty"`
	Provider         *wireProviderConfig `json:"provider,omitempty"`
	MaxTokens        int                 `json:"max_tokens,omitempty"`
}

type wireTextDelta struct{ Content string }
type wireThinkingDelta struct{ Content string }
type wireToolCallDelta struct {
	CallID    string `json:"call_id"`
	Name      string
	Arguments string
}
type wireCodeExecutionDelta struct{ Code, Result string }
type wireGroundingChunkInfo struct{ URI, Title string }
type wireGroundingSupport struct {
	StartIndex            int
	EndIndex              int
	Text                  string
	GroundingChunkIndices []int `json:"grounding_chunk_indices"`
}
type wireGroundingDelta struct {
	WebSearchQueries      []string                 `json:"web_search_queries"`
	GroundingChunks       []wireGroundingChunkInfo `json:"grounding_chunks"`
	GroundingSupports     []wireGroundingSupport   `json:"grounding_supports"`
	SearchEntryPointHTML string                   `json:"search_entry_point_html"`
}
type wireUsageInfo struct{ InputTokens, OutputTokens, TotalTokens, ThinkingTokens int }
type wireErrorInfo struct {
	Message   string
	Code      string
	Retryable bool
}

type wireResponse struct {
	IsFinal       bool                    `json:"is_final,omitempty"`
	Text          *wireTextDelta          `json:"text,omitempty"`
	Thinking      *wireThinkingDelta      `json:"thinking,omitempty"`
	ToolCall      *wireToolCallDelta      `json:"tool_call,omitempty"`
	CodeExecution *wireCodeExecutionDelta `json:"code_execution,omitempty"`
	Grounding     *wireGroundingDelta     `json:"grounding,omitempty"`
	Usage         *wireUsageInfo          `json:"usage,omitempty"`
	Error         *wireErrorInfo          `json:"error,omitempty"`
}

func toWireRequest(req *GenerateRequest) *wireRequest {
	w := &wireRequest{
		SessionID:        req.SessionID,
		StageExecutionID: req.StageExecutionID,
		Messages:         toWireMessages(req.Conversation),
		Tools:            toWireTools(req.Tools),
		MaxTokens:        req.MaxTokens,
	}
	if req.Provider != nil {
		w.Provider = toWireProviderConfig(req.Provider)
	}
	if len(req.NativeToolsOverride) > 0 && w.Provider != nil {
		w.Provider.NativeTools = make(map[string]bool, len(req.NativeToolsOverride))
		for tool, enabled := range req.NativeToolsOverride {
			w.Provider.NativeTools[string(tool)] = enabled
		}
	}
	return w
}

func toWireMessages(msgs []model.Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		wm := wireMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		out[i] = wm
	}
	return out
}

func toWireTools(tools []ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, len(tools))
	for i, t := range tools {
		out[i] = wireTool{Name: t.Name, Description: t.Description, ParametersSchema: t.ParametersSchema}
	}
	return out
}

func toWireProviderConfig(cfg *ProviderConfig) *wireProviderConfig {
	pc := &wireProviderConfig{
		Type:                string(cfg.Type),
		Model:               cfg.Model,
		APIKeyEnv:           cfg.APIKeyEnv,
		CredentialsEnv:      cfg.CredentialsEnv,
		BaseURL:             cfg.BaseURL,
		VerifySSL:           cfg.VerifySSL,
		MaxToolResultTokens: cfg.MaxToolResultTokens,
	}
	if len(cfg.NativeTools) > 0 {
		pc.NativeTools = make(map[string]bool, len(cfg.NativeTools))
		for tool, enabled := range cfg.NativeTools {
			pc.NativeTools[string(tool)] = enabled
		}
	}
	return pc
}

// fromWireResponse converts one streamed response into the corresponding
// Chunk. A final-only response (is_final with no populated field) is
// normal stream-completion signaling and returns nil without logging.
func fromWireResponse(resp *wireResponse) Chunk {
	switch {
	case resp.Text != nil:
		return &TextChunk{Content: resp.Text.Content}
	case resp.Thinking != nil:
		return &ThinkingChunk{Content: resp.Thinking.Content}
	case resp.ToolCall != nil:
		return &ToolCallChunk{CallID: resp.ToolCall.CallID, Name: resp.ToolCall.Name, Arguments: resp.ToolCall.Arguments}
	case resp.CodeExecution != nil:
		return &CodeExecutionChunk{Code: resp.CodeExecution.Code, Result: resp.CodeExecution.Result}
	case resp.Grounding != nil:
		g := resp.Grounding
		chunk := &GroundingChunk{WebSearchQueries: g.WebSearchQueries, SearchEntryPointHTML: g.SearchEntryPointHTML}
		for _, gc := range g.GroundingChunks {
			chunk.Sources = append(chunk.Sources, GroundingSource{URI: gc.URI, Title: gc.Title})
		}
		for _, gs := range g.GroundingSupports {
			chunk.Supports = append(chunk.Supports, GroundingSupport{
				StartIndex: gs.StartIndex, EndIndex: gs.EndIndex, Text: gs.Text,
				GroundingChunkIndices: gs.GroundingChunkIndices,
			})
		}
		return chunk
	case resp.Usage != nil:
		u := resp.Usage
		return &UsageChunk{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens, TotalTokens: u.TotalTokens, ThinkingTokens: u.ThinkingTokens}
	case resp.Error != nil:
		return &ErrorChunk{Message: resp.Error.Message, Code: resp.Error.Code, Retryable: resp.Error.Retryable}
	default:
		return nil
	}
}
