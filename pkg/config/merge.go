package config

// mergeAgents overlays user-defined agents onto the built-ins; a
// user-defined name replaces the built-in entirely rather than deep-merging
// fields, matching how chains/servers/providers are merged below.
func mergeAgents(builtin, user map[string]*AgentConfig) map[string]*AgentConfig {
	result := make(map[string]*AgentConfig, len(builtin)+len(user))
	for name, a := range builtin {
		result[name] = a
	}
	for name, a := range user {
		result[name] = a
	}
	return result
}

func mergeMCPServers(builtin, user map[string]*MCPServerConfig) map[string]*MCPServerConfig {
	result := make(map[string]*MCPServerConfig, len(builtin)+len(user))
	for id, s := range builtin {
		result[id] = s
	}
	for id, s := range user {
		result[id] = s
	}
	return result
}

func mergeChains(builtin, user map[string]*ChainConfig) map[string]*ChainConfig {
	result := make(map[string]*ChainConfig, len(builtin)+len(user))
	for id, c := range builtin {
		result[id] = c
	}
	for id, c := range user {
		result[id] = c
	}
	return result
}

func mergeLLMProviders(builtin, user map[string]*LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig, len(builtin)+len(user))
	for name, p := range builtin {
		result[name] = p
	}
	for name, p := range user {
		result[name] = p
	}
	return result
}
