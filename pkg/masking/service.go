package masking

import "log/slog"

// DataMaskingConfig is one MCP server's masking settings: which builtin
// pattern groups and individual patterns apply to its tool results, plus any
// server-specific custom patterns (spec §4.5).
type DataMaskingConfig struct {
	Enabled        bool
	PatternGroups  []string
	Patterns       []string
	CustomPatterns []PatternDef
}

// AlertMaskingConfig controls masking of incoming alert payload data, which
// uses a single pattern group rather than per-server configuration.
type AlertMaskingConfig struct {
	Enabled      bool
	PatternGroup string
}

// ServerLookup gives Service read access to the masking config of every
// configured MCP server, without depending on whatever package owns server
// configuration (kept decoupled so masking has no upward dependency).
type ServerLookup interface {
	// DataMaskingFor returns the masking config for serverID, or ok=false if
	// serverID is unknown.
	DataMaskingFor(serverID string) (cfg *DataMaskingConfig, ok bool)
	// AllDataMasking returns every configured server's masking config,
	// keyed by server id, for compiling custom patterns up front.
	AllDataMasking() map[string]*DataMaskingConfig
}

// Service applies data masking to MCP tool results and alert payloads. It is
// built once at startup; all compiled patterns are immutable afterward, so a
// *Service is safe for concurrent use.
type Service struct {
	lookup ServerLookup

	patterns             map[string]*CompiledPattern
	patternGroups        map[string][]string
	codeMaskers          map[string]Masker
	serverCustomPatterns map[string][]string

	alertMasking AlertMaskingConfig
}

// NewMaskingService compiles every builtin and custom pattern eagerly and
// registers the built-in code maskers. Patterns that fail to compile are
// logged and skipped rather than failing startup.
func NewMaskingService(lookup ServerLookup, alertCfg AlertMaskingConfig) *Service {
	s := &Service{
		lookup:               lookup,
		patterns:             make(map[string]*CompiledPattern),
		patternGroups:        BuiltinPatternGroups,
		codeMaskers:          make(map[string]Masker),
		serverCustomPatterns: make(map[string][]string),
		alertMasking:         alertCfg,
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns()
	s.registerMasker(&KubernetesSecretMasker{})

	slog.Info("masking service initialized",
		"builtin_patterns", len(BuiltinPatterns),
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"alert_masking_enabled", alertCfg.Enabled)

	return s
}

// MaskToolResult masks an MCP tool result for serverID. If the server has no
// masking configured, content passes through unchanged. A masking failure is
// fail-closed: the raw content is never returned, only a redaction notice,
// since tool results may carry live cluster credentials.
func (s *Service) MaskToolResult(content string, serverID string) string {
	if content == "" {
		return content
	}

	cfg, ok := s.lookup.DataMaskingFor(serverID)
	if !ok || cfg == nil || !cfg.Enabled {
		return content
	}

	resolved := s.resolvePatterns(cfg, serverID)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		slog.Error("masking: tool result masking failed, redacting (fail-closed)", "server", serverID, "error", err)
		return "[REDACTED: data masking failure — tool result could not be safely processed]"
	}
	return masked
}

// MaskAlertData masks alert payload text using the configured alert pattern
// group. Unlike MaskToolResult this is fail-open: alert data is not assumed
// to carry live credentials, and a masking bug must never block ingestion.
func (s *Service) MaskAlertData(data string) string {
	if !s.alertMasking.Enabled || data == "" {
		return data
	}

	resolved := s.resolvePatternsFromGroup(s.alertMasking.PatternGroup)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return data
	}

	masked, err := s.applyMasking(data, resolved)
	if err != nil {
		slog.Error("masking: alert masking failed, continuing unmasked (fail-open)", "error", err)
		return data
	}
	return masked
}

// applyMasking runs code maskers first, since they understand structure and
// can target just the sensitive fields, then sweeps the result with regex
// patterns for anything the code maskers don't cover.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) (string, error) {
	masked := content

	for _, name := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[name]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked, nil
}

func (s *Service) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
