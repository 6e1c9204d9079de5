package mcpclient

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the approximate number of characters per token for
// English text. Used for threshold estimation only, not exact counting.
const charsPerToken = 4

// DefaultStorageMaxTokens bounds tool output kept for display and audit
// records, protecting the dashboard from rendering massive text blobs.
const DefaultStorageMaxTokens = 8000

// DefaultSummarizationMaxTokens bounds tool output sent to the summarizer so
// the summarization prompt plus content fits the model's context window.
const DefaultSummarizationMaxTokens = 100000

// EstimateTokens approximates a token count for text using ~4 chars/token.
// Exact counts would need a tokenizer per provider; this threshold is a
// configurable soft limit, not a hard boundary, so the heuristic is enough.
//
// len(text) counts bytes, not runes, so multi-byte UTF-8 content
// overestimates slightly — erring toward summarizing a little earlier than
// strictly necessary, which is the safe direction.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// truncateAtLineBoundary cuts content at the last newline before maxChars,
// so indented JSON/YAML/log output isn't split mid-line.
func truncateAtLineBoundary(content string, maxChars int, marker string) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	truncated := content[:cut]
	if idx := strings.LastIndex(truncated, "\n"); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + fmt.Sprintf(
		"\n\n[TRUNCATED: %s — Original size: %s, limit: %s]",
		marker, formatSize(len(content)), formatSize(maxChars),
	)
}

// formatSize renders bytes as a human-readable size, avoiding a confusing
// "0KB" for small content.
func formatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	return fmt.Sprintf("%dKB", bytes/1024)
}

// TruncateForStorage truncates tool output before it's persisted to an
// interaction record or rendered on the dashboard.
func TruncateForStorage(content string) string {
	return truncateAtLineBoundary(content, DefaultStorageMaxTokens*charsPerToken,
		"Output exceeded storage display limit")
}

// TruncateForSummarization truncates tool output before it's handed to the
// summarization LLM call, as a safety net against oversized prompts.
func TruncateForSummarization(content string) string {
	return truncateAtLineBoundary(content, DefaultSummarizationMaxTokens*charsPerToken,
		"Output exceeded summarization input limit")
}

// ShouldSummarize reports whether content's estimated token count exceeds
// the server's configured summarization threshold.
func ShouldSummarize(content string, cfg *SummarizationConfig) bool {
	if cfg == nil || !cfg.Enabled {
		return false
	}
	threshold := cfg.ThresholdTokens
	if threshold <= 0 {
		threshold = DefaultStorageMaxTokens
	}
	return EstimateTokens(content) > threshold
}
