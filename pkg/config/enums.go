package config

// AgentType selects which controller and wrapper drive an agent (spec §4.7).
type AgentType string

const (
	AgentTypeDefault   AgentType = ""          // iterating investigation agent
	AgentTypeSynthesis AgentType = "synthesis" // single-shot synthesis of parallel results
)

func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeDefault, AgentTypeSynthesis:
		return true
	default:
		return false
	}
}

// IterationStrategy selects the agent controller (spec §4.7): ReAct (tool
// loop via Action/Input), NativeThinking (provider-native reasoning with no
// Action/Input parsing), or Synthesis (single-shot, no tool loop).
type IterationStrategy string

const (
	IterationStrategyReact          IterationStrategy = "react"
	IterationStrategyNativeThinking IterationStrategy = "native-thinking"
	IterationStrategySynthesis      IterationStrategy = "synthesis"
)

func (s IterationStrategy) IsValid() bool {
	switch s {
	case IterationStrategyReact, IterationStrategyNativeThinking, IterationStrategySynthesis:
		return true
	default:
		return false
	}
}

// SuccessPolicy decides whether a parallel stage counts as succeeded (spec
// §4.8).
type SuccessPolicy string

const (
	SuccessPolicyAll SuccessPolicy = "all"
	SuccessPolicyAny SuccessPolicy = "any"
)

func (p SuccessPolicy) IsValid() bool {
	return p == SuccessPolicyAll || p == SuccessPolicyAny
}

// TransportType names an MCP server's wire transport (spec §4.5), mirrored
// by pkg/mcpclient.TransportType once resolved.
type TransportType string

const (
	TransportTypeStdio TransportType = "stdio"
	TransportTypeHTTP  TransportType = "http"
	TransportTypeSSE   TransportType = "sse"
)

func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE
}

// LLMProviderType names a supported provider family (spec §4.6).
type LLMProviderType string

const (
	LLMProviderTypeGoogle    LLMProviderType = "google"
	LLMProviderTypeOpenAI    LLMProviderType = "openai"
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	LLMProviderTypeXAI       LLMProviderType = "xai"
	LLMProviderTypeVertexAI  LLMProviderType = "vertexai"
)

func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeGoogle, LLMProviderTypeOpenAI, LLMProviderTypeAnthropic,
		LLMProviderTypeXAI, LLMProviderTypeVertexAI:
		return true
	default:
		return false
	}
}

// GoogleNativeTool names a Google/Gemini native tool (spec §4.6).
type GoogleNativeTool string

const (
	GoogleNativeToolGoogleSearch  GoogleNativeTool = "google_search"
	GoogleNativeToolCodeExecution GoogleNativeTool = "code_execution"
	GoogleNativeToolURLContext    GoogleNativeTool = "url_context"
)

func (t GoogleNativeTool) IsValid() bool {
	return t == GoogleNativeToolGoogleSearch || t == GoogleNativeToolCodeExecution || t == GoogleNativeToolURLContext
}
