package controller

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/tarsy-project/tarsy-core/pkg/agent"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/llmclient"
	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// --- fake LLM server -------------------------------------------------
//
// llmclient.Client dials a real address (no custom-dialer seam), so these
// tests start an actual loopback gRPC server rather than reaching into
// llmclient's unexported wire types; the wire-shaped structs below mirror
// llmclient's own JSON tags exactly so the real Client unmarshals them the
// same way component 6's own tests do.

type wireTextDelta struct {
	Content string `json:"Content"`
}

type wireResponse struct {
	Text     *wireTextDelta     `json:"text,omitempty"`
	Thinking *wireThinkingDelta `json:"thinking,omitempty"`
	ToolCall *wireToolCallDelta `json:"tool_call,omitempty"`
	Usage    *wireUsageInfo     `json:"usage,omitempty"`
}

type wireThinkingDelta struct {
	Content string `json:"Content"`
}

type wireToolCallDelta struct {
	CallID    string `json:"call_id"`
	Name      string
	Arguments string
}

type wireUsageInfo struct {
	InputTokens, OutputTokens, TotalTokens, ThinkingTokens int
}

// scriptedLLMServer replays a fixed queue of responses, one per Generate
// call, ignoring the request it receives. Each entry in responses is the
// full set of streamed frames for that call.
type scriptedLLMServer struct {
	mu        sync.Mutex
	responses [][]wireResponse
	calls     int
}

func (s *scriptedLLMServer) Generate(stream grpc.ServerStream) error {
	var req map[string]any
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	if idx >= len(s.responses) {
		return fmt.Errorf("scriptedLLMServer: no scripted response for call %d", idx)
	}
	for _, resp := range s.responses[idx] {
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
	return nil
}

var fakeLLMServiceDesc = grpc.ServiceDesc{
	ServiceName: "tarsy.llm.v1.LLMService",
	HandlerType: (*interface{ Generate(grpc.ServerStream) error })(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Generate",
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(interface{ Generate(grpc.ServerStream) error }).Generate(stream)
			},
			ServerStreams: true,
		},
	},
}

// startScriptedLLMClient starts a loopback gRPC server that answers each
// successive Generate call with the next entry of responses, and returns a
// real *llmclient.Client dialed against it.
func startScriptedLLMClient(t *testing.T, responses [][]wireResponse) *llmclient.Client {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	server := grpc.NewServer()
	server.RegisterService(&fakeLLMServiceDesc, &scriptedLLMServer{responses: responses})
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	client, err := llmclient.NewClient(lis.Addr().String(), nil)
	if err != nil {
		t.Fatalf("failed to dial fake llm server: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func textResponse(content string) []wireResponse {
	return []wireResponse{{Text: &wireTextDelta{Content: content}}}
}

// toolCallResponse builds a single-frame tool-call response: the fake
// provider adapter emits the whole call in one delta rather than streaming
// argument fragments, which the real client's accumulation logic handles
// identically either way.
func toolCallResponse(callID, name, arguments string) []wireResponse {
	return []wireResponse{{ToolCall: &wireToolCallDelta{CallID: callID, Name: name, Arguments: arguments}}}
}

func thinkingOnlyResponse(content string) []wireResponse {
	return []wireResponse{{Thinking: &wireThinkingDelta{Content: content}}}
}

// --- fake ToolExecutor -------------------------------------------------

type fakeToolExecutor struct {
	tools   []mcpclient.ToolDefinition
	results map[string]*mcpclient.ToolResult // keyed by call.Name
	err     error
	calls   []model.ToolCall
}

func (f *fakeToolExecutor) Execute(ctx context.Context, call model.ToolCall) (*mcpclient.ToolResult, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	if result, ok := f.results[call.Name]; ok {
		return result, nil
	}
	return &mcpclient.ToolResult{Name: call.Name, Content: "ok"}, nil
}

func (f *fakeToolExecutor) ListTools(ctx context.Context) ([]mcpclient.ToolDefinition, error) {
	return f.tools, nil
}

func (f *fakeToolExecutor) Close() error { return nil }

// --- fake PromptBuilder --------------------------------------------------

type fakePromptBuilder struct{}

func (fakePromptBuilder) BuildReActMessages(execCtx *agent.ExecutionContext, prevStageContext string, tools []mcpclient.ToolDefinition) []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "system"},
		{Role: model.RoleUser, Content: "investigate"},
	}
}

func (fakePromptBuilder) BuildNativeThinkingMessages(execCtx *agent.ExecutionContext, prevStageContext string) []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "system"},
		{Role: model.RoleUser, Content: "investigate"},
	}
}

func (fakePromptBuilder) BuildSynthesisMessages(execCtx *agent.ExecutionContext, prevStageContext string) []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "synthesis system"},
		{Role: model.RoleUser, Content: "synthesize"},
	}
}

func (fakePromptBuilder) BuildForcedConclusionPrompt(iteration int, strategy config.IterationStrategy) string {
	return fmt.Sprintf("force conclusion at iteration %d (%s)", iteration, strategy)
}

func (fakePromptBuilder) BuildMCPSummarizationSystemPrompt(serverName, toolName string, maxSummaryTokens int) string {
	return fmt.Sprintf("summarize %s.%s to %d tokens", serverName, toolName, maxSummaryTokens)
}

func (fakePromptBuilder) BuildMCPSummarizationUserPrompt(conversationContext, serverName, toolName, resultText string) string {
	return fmt.Sprintf("context: %s\nresult: %s", conversationContext, resultText)
}

// --- fake Store / Bus -----------------------------------------------

// fakeStore embeds store.Store (nil) so only the methods these tests care
// about need overriding; any unexercised method would panic on a nil
// receiver call, which is fine since these tests never exercise them.
type fakeStore struct {
	store.Store
	mu               sync.Mutex
	llmInteractions  []*model.LLMInteraction
	mcpInteractions  []*model.MCPInteraction
}

func (f *fakeStore) CreateLLMInteraction(ctx context.Context, i *model.LLMInteraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.llmInteractions = append(f.llmInteractions, i)
	return nil
}

func (f *fakeStore) CreateMCPInteraction(ctx context.Context, i *model.MCPInteraction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mcpInteractions = append(f.mcpInteractions, i)
	return nil
}

type noopBus struct{}

func (noopBus) Publish(ctx context.Context, channel string, payload any) (*model.Event, error) {
	return &model.Event{}, nil
}
func (noopBus) Subscribe(ctx context.Context, channel string, fn func(*model.Event)) (func(), error) {
	return func() {}, nil
}
func (noopBus) GetEventsAfter(ctx context.Context, channel string, afterID int64, limit int) ([]*model.Event, error) {
	return nil, nil
}

// baseExecCtx builds a minimal, valid ExecutionContext for controller
// tests, with sensible defaults every test can override selectively.
func baseExecCtx(llmClient *llmclient.Client, toolExecutor mcpclient.ToolExecutor, maxIterations int) *agent.ExecutionContext {
	return &agent.ExecutionContext{
		SessionID:   "sess-1",
		ExecutionID: "exec-1",
		AlertType:   "kubernetes",
		AlertData:   `{"namespace": "default"}`,
		Config: &config.ResolvedAgentConfig{
			AgentName:        "KubernetesAgent",
			MaxIterations:    maxIterations,
			IterationTimeout: 5 * time.Second,
			LLMProvider: &config.LLMProviderConfig{
				Type:                config.LLMProviderTypeAnthropic,
				Model:               "claude-test",
				MaxToolResultTokens: 2000,
			},
		},
		LLMClient:     llmClient,
		ToolExecutor:  toolExecutor,
		Store:         &fakeStore{},
		Events:        noopBus{},
		PromptBuilder: fakePromptBuilder{},
	}
}
