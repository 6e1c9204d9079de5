package masking

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
)

// CompiledPattern is a masking rule with its regex already compiled.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// resolvedPatterns is the set of maskers a single masking operation should
// run, split by kind since code maskers and regex patterns apply in
// separate phases (see applyMasking).
type resolvedPatterns struct {
	codeMaskerNames []string
	regexPatterns   []*CompiledPattern
}

// compileBuiltinPatterns compiles every entry in BuiltinPatterns. A pattern
// that fails to compile is logged and dropped rather than failing startup.
func (s *Service) compileBuiltinPatterns() {
	for name, def := range BuiltinPatterns {
		compiled, err := regexp.Compile(def.Pattern)
		if err != nil {
			slog.Error("masking: invalid built-in pattern, skipping", "pattern", name, "error", err)
			continue
		}
		s.patterns[name] = &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: def.Replacement,
			Description: def.Description,
		}
	}
}

// compileCustomPatterns compiles the per-server custom patterns supplied
// through the lookup given to NewMaskingService. Custom patterns are keyed
// "custom:{serverID}:{index}" so two servers can't collide.
func (s *Service) compileCustomPatterns() {
	for serverID, cfg := range s.lookup.AllDataMasking() {
		if cfg == nil || !cfg.Enabled {
			continue
		}
		for i, def := range cfg.CustomPatterns {
			name := fmt.Sprintf("custom:%s:%d", serverID, i)
			compiled, err := regexp.Compile(def.Pattern)
			if err != nil {
				slog.Error("masking: invalid custom pattern, skipping", "pattern", name, "server", serverID, "error", err)
				continue
			}
			s.patterns[name] = &CompiledPattern{
				Name:        name,
				Regex:       compiled,
				Replacement: def.Replacement,
				Description: def.Description,
			}
			s.serverCustomPatterns[serverID] = append(s.serverCustomPatterns[serverID], name)
		}
	}
}

// resolvePatterns expands one server's masking config into a deduplicated
// resolvedPatterns: its pattern groups, its individual patterns, then its
// custom patterns.
func (s *Service) resolvePatterns(cfg *DataMaskingConfig, serverID string) *resolvedPatterns {
	seen := make(map[string]bool)
	resolved := &resolvedPatterns{}

	for _, groupName := range cfg.PatternGroups {
		for _, name := range s.patternGroups[groupName] {
			if seen[name] {
				continue
			}
			seen[name] = true
			s.addToResolved(resolved, name)
		}
	}

	for _, name := range cfg.Patterns {
		if seen[name] {
			continue
		}
		seen[name] = true
		s.addToResolved(resolved, name)
	}

	if serverID != "" {
		for _, name := range s.serverCustomPatterns[serverID] {
			if seen[name] {
				continue
			}
			seen[name] = true
			if cp, ok := s.patterns[name]; ok {
				resolved.regexPatterns = append(resolved.regexPatterns, cp)
			}
		}
	}

	return resolved
}

// resolvePatternsFromGroup resolves a single named group, used for alert
// payload masking which has no per-server custom patterns.
func (s *Service) resolvePatternsFromGroup(groupName string) *resolvedPatterns {
	resolved := &resolvedPatterns{}
	seen := make(map[string]bool)
	for _, name := range s.patternGroups[groupName] {
		if seen[name] {
			continue
		}
		seen[name] = true
		s.addToResolved(resolved, name)
	}
	return resolved
}

// addToResolved categorizes name as a code masker or a compiled regex and
// appends it to resolved.
func (s *Service) addToResolved(resolved *resolvedPatterns, name string) {
	if slices.Contains(BuiltinCodeMaskers, name) {
		resolved.codeMaskerNames = append(resolved.codeMaskerNames, name)
		return
	}
	if cp, ok := s.patterns[name]; ok {
		resolved.regexPatterns = append(resolved.regexPatterns, cp)
	}
}
