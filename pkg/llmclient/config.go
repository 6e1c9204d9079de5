package llmclient

// ProviderType identifies which LLM provider a ProviderConfig targets.
type ProviderType string

const (
	ProviderOpenAI   ProviderType = "openai"
	ProviderGoogle   ProviderType = "google"
	ProviderXAI      ProviderType = "xai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderVertexAI ProviderType = "vertexai"
)

// NativeTool identifies a provider-native tool (search, URL context, code
// execution) that bypasses the MCP tool-call loop entirely.
type NativeTool string

const (
	NativeToolGoogleSearch  NativeTool = "google_search"
	NativeToolURLContext    NativeTool = "url_context"
	NativeToolCodeExecution NativeTool = "code_execution"
)

// ProviderConfig is one named provider entry: type, model, credentials, and
// per-provider knobs (spec §4.6).
type ProviderConfig struct {
	Type  ProviderType
	Model string

	APIKeyEnv      string // env var holding the API key; the sidecar resolves it
	CredentialsEnv string // env var holding a service-account credentials file path (VertexAI)
	BaseURL        string
	VerifySSL      *bool // nil means verify

	MaxToolResultTokens int

	// VertexAI project/location are resolved from these env vars and sent
	// as values (not names) since the sidecar has no access to this
	// process's environment.
	ProjectEnv  string
	LocationEnv string

	NativeTools map[NativeTool]bool
}

// ToolDefinition describes one callable tool offered to the LLM. Duplicated
// from pkg/mcpclient's type of the same shape rather than imported, so this
// package stays usable without an MCP client in the loop (e.g. for a
// ChatAgent with no tools).
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// StreamType classifies a streaming chunk for the UI (spec §4.6): which
// kind of LLM turn it belongs to, not which wire shape it carries.
type StreamType string

const (
	StreamThought        StreamType = "THOUGHT"
	StreamFinalAnswer    StreamType = "FINAL_ANSWER"
	StreamNativeThinking StreamType = "NATIVE_THINKING"
	StreamSummarization  StreamType = "SUMMARIZATION"
)

// ParallelMetadata is threaded through stream chunks so the UI can group
// concurrent parallel-stage output (spec §4.6).
type ParallelMetadata struct {
	ParentStageExecutionID string
	ParallelIndex          int
	AgentName              string
}
