// Package llmclient implements the provider-agnostic LLM client (spec
// §4.6, component 6): a single generate_response call to an out-of-process
// provider adapter over gRPC, streaming chunks to subscribed dashboards as
// they arrive and returning the completed assistant message.
//
// The wire format is JSON over a custom grpc codec rather than generated
// protobuf stubs: every message on the wire is a plain Go struct (see
// wire.go), so the request/response shape is exercised directly by this
// package's tests without a protoc step.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/tarsy-project/tarsy-core/pkg/eventbus"
	"github.com/tarsy-project/tarsy-core/pkg/metrics"
	"github.com/tarsy-project/tarsy-core/pkg/model"
)

var tracer = otel.Tracer("github.com/tarsy-project/tarsy-core/pkg/llmclient")

// jsonCodecName is registered once per process; Client selects it via
// grpc.CallContentSubtype so every call on the connection uses it.
const jsonCodecName = "tarsy-json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)       { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                        { return jsonCodecName }

func init() { encoding.RegisterCodec(jsonCodec{}) }

// generateMethod is the fully-qualified RPC path, matching what a real
// .proto-defined LLMService/Generate streaming method would generate.
const generateMethod = "/tarsy.llm.v1.LLMService/Generate"

var generateStreamDesc = grpc.StreamDesc{StreamName: "Generate", ServerStreams: true}

// StreamPublisher delivers one transient streaming frame to whatever is
// subscribed on channel. Implemented by pkg/wshub.Hub.PublishTransient.
type StreamPublisher interface {
	PublishTransient(channel string, payload any)
}

// Client calls the LLM provider adapter sidecar over gRPC.
type Client struct {
	conn      *grpc.ClientConn
	publisher StreamPublisher
	metrics   *metrics.Collector

	warnedNoPublisher atomic.Bool
}

// SetMetrics attaches m so every Generate call reports its outcome and
// latency to it. m may be nil (the default), in which case observations
// are skipped.
func (c *Client) SetMetrics(m *metrics.Collector) { c.metrics = m }

// NewClient dials addr (plaintext — the adapter is expected to run as a
// sidecar or on localhost, same trust boundary as the teacher's gRPC LLM
// client). publisher may be nil, in which case Generate still returns the
// final message but never streams intermediate chunks; a warning is logged
// once the first time that happens.
func NewClient(addr string, publisher StreamPublisher) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("llmclient: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, publisher: publisher}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error { return c.conn.Close() }

// Generate sends req's conversation to the provider and streams the
// response, publishing transient chunks as they arrive and returning the
// completed assistant message once the stream ends (spec §4.6).
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	provider := "unknown"
	modelName := ""
	if req.Provider != nil {
		provider = string(req.Provider.Type)
		modelName = req.Provider.Model
	}

	ctx, span := tracer.Start(ctx, "llmclient.generate",
		trace.WithAttributes(
			attribute.String("tarsy.session_id", req.SessionID),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", modelName),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := c.generate(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	c.metrics.ObserveLLMCall(provider, status, time.Since(start).Seconds())

	return result, err
}

func (c *Client) generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	stream, err := c.conn.NewStream(ctx, &generateStreamDesc, generateMethod)
	if err != nil {
		return nil, fmt.Errorf("llmclient: open stream: %w", err)
	}

	if err := stream.SendMsg(toWireRequest(req)); err != nil {
		return nil, fmt.Errorf("llmclient: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("llmclient: close send: %w", err)
	}

	var textBuf, thinkingBuf strings.Builder
	var usage *UsageChunk
	var grounding *GroundingChunk
	var streamErr *ErrorChunk
	var toolCallOrder []string
	toolCallsByID := make(map[string]*model.ToolCall)

	for {
		var resp wireResponse
		err := stream.RecvMsg(&resp)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("llmclient: receive: %w", err)
		}

		chunk := fromWireResponse(&resp)
		if chunk == nil {
			continue
		}

		switch tc := chunk.(type) {
		case *TextChunk:
			textBuf.WriteString(tc.Content)
			c.publish(req, textBuf.String())
		case *ThinkingChunk:
			thinkingBuf.WriteString(tc.Content)
			c.publish(req, thinkingBuf.String())
		case *ToolCallChunk:
			existing, ok := toolCallsByID[tc.CallID]
			if !ok {
				existing = &model.ToolCall{ID: tc.CallID}
				toolCallsByID[tc.CallID] = existing
				toolCallOrder = append(toolCallOrder, tc.CallID)
			}
			if tc.Name != "" {
				existing.Name = tc.Name
			}
			existing.Arguments += tc.Arguments
		case *UsageChunk:
			usage = tc
		case *GroundingChunk:
			grounding = tc
		case *ErrorChunk:
			streamErr = tc
		}
	}

	if streamErr != nil {
		return nil, fmt.Errorf("llmclient: provider error (code=%s retryable=%v): %s",
			streamErr.Code, streamErr.Retryable, streamErr.Message)
	}

	msg := model.Message{Role: model.RoleAssistant, Content: textBuf.String()}
	for _, id := range toolCallOrder {
		msg.ToolCalls = append(msg.ToolCalls, *toolCallsByID[id])
	}

	interactionType := req.InteractionType
	if DetectFinalAnswer(append(append([]model.Message{}, req.Conversation...), msg)) {
		interactionType = model.InteractionFinalAnswer
	}

	return &GenerateResult{
		Message:         msg,
		InteractionType: interactionType,
		ThinkingContent: thinkingBuf.String(),
		Usage:           usage,
		Grounding:       grounding,
	}, nil
}

// publish emits one transient llm.stream.chunk frame carrying the
// accumulated content so far (spec §4.6: clients replace, not append).
func (c *Client) publish(req *GenerateRequest, content string) {
	if c.publisher == nil {
		if c.warnedNoPublisher.CompareAndSwap(false, true) {
			slog.Warn("llmclient: no stream publisher configured; streaming disabled for this client instance",
				"session_id", req.SessionID)
		}
		return
	}

	payload := eventbus.LLMStreamChunkPayload{
		Type:        eventbus.EventLLMStreamChunk,
		SessionID:   req.SessionID,
		ExecutionID: req.StageExecutionID,
		Content:     content,
		StreamType:  string(req.StreamType),
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if req.ParallelMetadata != nil {
		payload.ParentExecutionID = req.ParallelMetadata.ParentStageExecutionID
		payload.AgentName = req.ParallelMetadata.AgentName
		idx := req.ParallelMetadata.ParallelIndex
		payload.ParallelIndex = &idx
	}

	c.publisher.PublishTransient("session:"+req.SessionID, payload)
}
