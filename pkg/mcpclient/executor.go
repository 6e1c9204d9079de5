package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tarsy-project/tarsy-core/pkg/masking"
	"github.com/tarsy-project/tarsy-core/pkg/metrics"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

var tracer = otel.Tracer("github.com/tarsy-project/tarsy-core/pkg/mcpclient")

// Compile-time check that Executor implements ToolExecutor.
var _ ToolExecutor = (*Executor)(nil)

// Executor implements ToolExecutor against real MCP servers. Created
// per-session by ClientFactory.
type Executor struct {
	client   *Client
	registry *Registry

	serverIDs []string

	// toolFilter restricts which tools are callable per server, from a
	// per-alert MCP selection override. nil for a server means unrestricted.
	toolFilter map[string][]string

	// maskingService may be nil, in which case results are returned unmasked.
	maskingService *masking.Service

	// metricsCollector may be nil, in which case tool-call observations are
	// skipped. Set via SetMetrics, since ClientFactory.CreateExecutor is
	// the only constructor call site and threading it through every caller
	// of that factory isn't warranted just to reach this one collaborator.
	metricsCollector *metrics.Collector
}

// SetMetrics attaches m so every Execute call reports its outcome and
// latency to it.
func (e *Executor) SetMetrics(m *metrics.Collector) { e.metricsCollector = m }

// NewExecutor creates an executor scoped to serverIDs.
func NewExecutor(
	client *Client,
	registry *Registry,
	serverIDs []string,
	toolFilter map[string][]string,
	maskingService *masking.Service,
) *Executor {
	return &Executor{
		client:         client,
		registry:       registry,
		serverIDs:      serverIDs,
		toolFilter:     toolFilter,
		maskingService: maskingService,
	}
}

// Execute resolves call to a server.tool pair, parses its arguments, runs
// it via MCP, and masks the result. Tool-level failures (bad arguments,
// unknown server, MCP error) are returned as a ToolResult with IsError set,
// not as a Go error — only infrastructure failures return an error.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) (*ToolResult, error) {
	start := time.Now()
	name := NormalizeToolName(call.Name)

	ctx, span := tracer.Start(ctx, "mcpclient.tool_call",
		trace.WithAttributes(attribute.String("mcp.tool_call_id", call.ID)),
	)
	defer span.End()

	serverID, toolName, err := e.resolveToolCall(name)
	if err != nil {
		e.observe("unknown", name, "error", start)
		span.SetStatus(codes.Error, err.Error())
		return &ToolResult{CallID: call.ID, Name: call.Name, Content: err.Error(), IsError: true}, nil
	}
	span.SetAttributes(
		attribute.String("mcp.server", serverID),
		attribute.String("mcp.tool", toolName),
	)

	params, err := ParseActionInput(call.Arguments)
	if err != nil {
		e.observe(serverID, toolName, "error", start)
		span.SetStatus(codes.Error, err.Error())
		return &ToolResult{
			CallID: call.ID, Name: call.Name,
			Content: fmt.Sprintf("failed to parse tool arguments: %s", err), IsError: true,
		}, nil
	}

	result, err := e.client.CallTool(ctx, serverID, toolName, params)
	if err != nil {
		e.observe(serverID, toolName, "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &ToolResult{
			CallID: call.ID, Name: call.Name,
			Content: fmt.Sprintf("mcp tool execution failed: %s", err), IsError: true,
		}, nil
	}

	content := extractTextContent(result)
	if e.maskingService != nil {
		content = e.maskingService.MaskToolResult(content, serverID)
	}

	status := "success"
	if result.IsError {
		status = "tool_error"
	}
	e.observe(serverID, toolName, status, start)
	if result.IsError {
		span.SetStatus(codes.Error, "tool reported an error result")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	// Summarization against the token threshold is a controller-level
	// decision: it needs the LLM client, conversation context, and event
	// publishing, none of which the executor has.

	return &ToolResult{CallID: call.ID, Name: call.Name, Content: content, IsError: result.IsError}, nil
}

func (e *Executor) observe(server, tool, status string, start time.Time) {
	e.metricsCollector.ObserveToolCall(server, tool, status, time.Since(start).Seconds())
}

// ListTools returns every available tool across this executor's servers,
// server-prefixed ("kubernetes-server.get_pods").
func (e *Executor) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	var allTools []ToolDefinition

	for _, serverID := range e.serverIDs {
		tools, err := e.client.ListTools(ctx, serverID)
		if err != nil {
			slog.Warn("failed to list tools from mcp server", "server", serverID, "error", err)
			continue
		}

		for _, tool := range tools {
			if filter, ok := e.toolFilter[serverID]; ok && len(filter) > 0 {
				if !slices.Contains(filter, tool.Name) {
					continue
				}
			}

			allTools = append(allTools, ToolDefinition{
				Name:             fmt.Sprintf("%s.%s", serverID, tool.Name),
				Description:      tool.Description,
				ParametersSchema: marshalSchema(tool.InputSchema),
			})
		}
	}

	return allTools, nil
}

// Close releases the underlying MCP sessions and transports.
func (e *Executor) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *Executor) resolveToolCall(name string) (serverID, toolName string, err error) {
	serverID, toolName, err = SplitToolName(name)
	if err != nil {
		return "", "", err
	}

	if !slices.Contains(e.serverIDs, serverID) {
		return "", "", fmt.Errorf(
			"mcp server %q is not available for this execution; available servers: %s",
			serverID, strings.Join(e.serverIDs, ", "))
	}

	if filter, ok := e.toolFilter[serverID]; ok && len(filter) > 0 {
		if !slices.Contains(filter, toolName) {
			return "", "", fmt.Errorf(
				"tool %q is not available on server %q; available tools: %s",
				toolName, serverID, strings.Join(filter, ", "))
		}
	}

	return serverID, toolName, nil
}

// extractTextContent concatenates every TextContent item in an MCP result.
// Non-text content (images, embedded resources) is skipped.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		} else {
			slog.Debug("mcp tool returned non-text content, skipping", "content_type", fmt.Sprintf("%T", c))
		}
	}
	return strings.Join(parts, "\n")
}

func marshalSchema(schema any) string {
	if schema == nil {
		return ""
	}
	data, err := json.Marshal(schema)
	if err != nil {
		slog.Debug("failed to marshal tool input schema", "error", err)
		return ""
	}
	return string(data)
}
