package config

import "fmt"

// allowedChainFields are the only keys permitted on an agent_chains entry
// once rewriteLegacyChatField has run (spec §4.11 backward-compat rule).
var allowedChainFields = map[string]struct{}{
	"alert_types": {}, "description": {}, "stages": {}, "chat": {},
	"llm_provider": {}, "executive_summary_provider": {}, "max_iterations": {},
	"force_conclusion_at_max_iterations": {}, "mcp_servers": {},
}

// rewriteLegacyChainFields silently rewrites a legacy chat_enabled: bool
// field on each chain entry to chat: {enabled: bool}, unless chat is already
// present (in which case chat_enabled is dropped in favor of it). Any other
// field not in allowedChainFields is rejected (spec §4.11).
func rewriteLegacyChainFields(chains map[string]any) error {
	for id, raw := range chains {
		chain, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if legacy, present := chain["chat_enabled"]; present {
			if _, hasNew := chain["chat"]; !hasNew {
				enabled, _ := legacy.(bool)
				chain["chat"] = map[string]any{"enabled": enabled}
			}
			delete(chain, "chat_enabled")
		}

		for field := range chain {
			if _, ok := allowedChainFields[field]; !ok {
				return fmt.Errorf("%w: chain %q: %q", ErrUnknownField, id, field)
			}
		}
	}
	return nil
}
