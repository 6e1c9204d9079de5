package mcpclient

import (
	"fmt"
	"sync"

	"github.com/tarsy-project/tarsy-core/pkg/masking"
)

// TransportType identifies the wire protocol used to reach an MCP server.
type TransportType string

const (
	TransportTypeStdio TransportType = "stdio"
	TransportTypeHTTP  TransportType = "http"
	TransportTypeSSE   TransportType = "sse"
)

// TransportConfig describes how to reach one MCP server. Template
// placeholders (e.g. "{{.KUBECONFIG}}") in Command/Args/Env/URL are expected
// to already be resolved by the time this reaches the transport layer.
type TransportConfig struct {
	Type TransportType

	// stdio
	Command string
	Args    []string
	Env     map[string]string

	// http / sse
	URL         string
	BearerToken string
	VerifySSL   *bool // nil means use transport default (verify)
	Timeout     int   // seconds; 0 means use transport default
}

// SummarizationConfig controls when a tool result is handed to the LLM
// summarizer instead of being returned verbatim.
type SummarizationConfig struct {
	Enabled          bool
	ThresholdTokens  int // summarize when estimated tokens exceed this
	SummaryMaxTokens int // target length for the summary itself
}

// ServerConfig is everything the MCP client needs to manage one server's
// session and post-process its results.
type ServerConfig struct {
	ID            string
	Transport     TransportConfig
	Instructions  string // appended to the agent's system prompt, if non-empty
	DataMasking   *masking.DataMaskingConfig
	Summarization *SummarizationConfig
}

// Registry is a read-mostly, concurrency-safe lookup of server configs. It
// doubles as a masking.ServerLookup so a masking.Service can be constructed
// directly from it without an intermediate config layer.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*ServerConfig
}

// NewRegistry builds a Registry from a list of server configs.
func NewRegistry(servers []*ServerConfig) *Registry {
	r := &Registry{servers: make(map[string]*ServerConfig, len(servers))}
	for _, s := range servers {
		r.servers[s.ID] = s
	}
	return r
}

// Get returns the config for serverID, or an error if it isn't registered.
func (r *Registry) Get(serverID string) (*ServerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.servers[serverID]
	if !ok {
		return nil, fmt.Errorf("mcp server %q not registered", serverID)
	}
	return cfg, nil
}

// IDs returns every registered server ID, in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.servers))
	for id := range r.servers {
		ids = append(ids, id)
	}
	return ids
}

// DataMaskingFor implements masking.ServerLookup.
func (r *Registry) DataMaskingFor(serverID string) (*masking.DataMaskingConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.servers[serverID]
	if !ok || cfg.DataMasking == nil {
		return nil, false
	}
	return cfg.DataMasking, true
}

// AllDataMasking implements masking.ServerLookup.
func (r *Registry) AllDataMasking() map[string]*masking.DataMaskingConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*masking.DataMaskingConfig, len(r.servers))
	for id, cfg := range r.servers {
		if cfg.DataMasking != nil {
			out[id] = cfg.DataMasking
		}
	}
	return out
}
