package mcpclient

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseActionInput parses a ReAct-style ActionInput string into structured
// tool call arguments.
//
// Parsing cascade (first successful parse wins):
//  1. JSON object -> map[string]any
//  2. JSON non-object (string, number, array, bool, null) -> {"input": value}
//  3. YAML with complex structures (arrays, nested maps) -> map[string]any
//  4. key: value / key=value pairs, comma- or newline-separated
//  5. raw string -> {"input": string}
//
// Empty input returns an empty map, for tools that take no parameters.
func ParseActionInput(input string) (map[string]any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return map[string]any{}, nil
	}

	if result, ok := tryParseJSON(input); ok {
		return result, nil
	}

	if result, ok := tryParseYAML(input); ok {
		return result, nil
	}

	if result, ok := tryParseKeyValue(input); ok {
		return result, nil
	}

	return map[string]any{"input": input}, nil
}

// tryParseJSON attempts to parse input as JSON, wrapping non-object results
// as {"input": value}.
func tryParseJSON(input string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) == 0 {
		return nil, false
	}
	b := trimmed[0]
	isJSONStart := b == '{' || b == '[' || b == '"' ||
		(b >= '0' && b <= '9') || b == '-' ||
		b == 't' || b == 'f' || b == 'n'
	if !isJSONStart {
		return nil, false
	}

	var raw any
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil, false
	}

	if m, ok := raw.(map[string]any); ok {
		return m, true
	}
	return map[string]any{"input": raw}, true
}

// tryParseYAML only accepts a YAML map containing complex values (arrays or
// nested maps); plain "key: value" lines are left to tryParseKeyValue to
// avoid false positives on text that merely looks YAML-ish.
func tryParseYAML(input string) (map[string]any, bool) {
	var result map[string]any
	if err := yaml.Unmarshal([]byte(input), &result); err != nil {
		return nil, false
	}
	if len(result) == 0 {
		return nil, false
	}
	if hasComplexValues(result) {
		return result, true
	}
	return nil, false
}

func hasComplexValues(m map[string]any) bool {
	for _, v := range m {
		switch v.(type) {
		case []any, map[string]any:
			return true
		}
	}
	return false
}

// tryParseKeyValue parses "key: value" or "key=value" pairs separated by
// commas or newlines.
func tryParseKeyValue(input string) (map[string]any, bool) {
	parts := splitKeyValueParts(input)
	if len(parts) == 0 {
		return nil, false
	}

	result := make(map[string]any)
	for _, part := range parts {
		key, value, ok := parseKeyValuePair(part)
		if !ok {
			return nil, false
		}
		result[key] = coerceValue(value)
	}

	if len(result) == 0 {
		return nil, false
	}
	return result, true
}

// splitKeyValueParts splits on commas and newlines. Values that themselves
// contain a comma (e.g. "tags: a,b,c") are mis-split; the input then falls
// through to the raw-string fallback, which is safe but unstructured.
func splitKeyValueParts(input string) []string {
	normalized := strings.ReplaceAll(input, "\n", ",")
	raw := strings.Split(normalized, ",")

	var parts []string
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func parseKeyValuePair(part string) (key, value string, ok bool) {
	if idx := strings.Index(part, ":"); idx > 0 {
		k := strings.TrimSpace(part[:idx])
		v := strings.TrimSpace(part[idx+1:])
		if isValidKey(k) {
			return k, v, true
		}
	}
	if idx := strings.Index(part, "="); idx > 0 {
		k := strings.TrimSpace(part[:idx])
		v := strings.TrimSpace(part[idx+1:])
		if isValidKey(k) {
			return k, v, true
		}
	}
	return "", "", false
}

func isValidKey(k string) bool {
	return k != "" && !strings.Contains(k, " ")
}

// coerceValue converts a raw string value to bool/nil/int/float where it
// unambiguously parses as one, leaving everything else as a string.
func coerceValue(s string) any {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	if lower == "true" {
		return true
	}
	if lower == "false" {
		return false
	}
	if lower == "null" || lower == "none" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return s
		}
		return f
	}
	return s
}
