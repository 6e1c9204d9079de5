package config

// Config is the umbrella configuration object returned by Initialize and
// used throughout the process: system defaults plus every component
// registry.
type Config struct {
	configDir string

	Defaults  *Defaults
	Queue     *QueueConfig
	Retention *RetentionConfig
	Slack     *SlackConfig

	AgentRegistry       *AgentRegistry
	ChainRegistry       *ChainRegistry
	MCPServerRegistry   *MCPServerRegistry
	LLMProviderRegistry *LLMProviderRegistry
}

// Stats summarizes loaded configuration for startup logging.
type Stats struct {
	Agents       int
	Chains       int
	MCPServers   int
	LLMProviders int
}

func (c *Config) Stats() Stats {
	return Stats{
		Agents:       len(c.AgentRegistry.GetAll()),
		Chains:       len(c.ChainRegistry.GetAll()),
		MCPServers:   len(c.MCPServerRegistry.GetAll()),
		LLMProviders: len(c.LLMProviderRegistry.GetAll()),
	}
}

func (c *Config) ConfigDir() string { return c.configDir }

func (c *Config) GetAgent(name string) (*AgentConfig, error) { return c.AgentRegistry.Get(name) }

func (c *Config) GetChain(chainID string) (*ChainConfig, error) { return c.ChainRegistry.Get(chainID) }

func (c *Config) GetChainByAlertType(alertType string) (*ChainConfig, error) {
	return c.ChainRegistry.GetByAlertType(alertType)
}

func (c *Config) GetChainIDByAlertType(alertType string) (string, error) {
	return c.ChainRegistry.GetIDByAlertType(alertType)
}

func (c *Config) GetMCPServer(serverID string) (*MCPServerConfig, error) {
	return c.MCPServerRegistry.Get(serverID)
}

func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
