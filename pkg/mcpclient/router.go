package mcpclient

import (
	"fmt"
	"regexp"
	"strings"
)

// toolNameRegex validates the "server.tool" format: both parts must start
// with a word character and contain only word characters and hyphens.
var toolNameRegex = regexp.MustCompile(`^([\w][\w-]*)\.([\w][\w-]*)$`)

// NormalizeToolName converts a tool name from either controller's wire
// format into the canonical "server.tool" form. NativeThinking controllers
// use "server__tool" (some providers reject dots in function names); ReAct
// controllers use "server.tool" already.
func NormalizeToolName(name string) string {
	if strings.Contains(name, "__") && !strings.Contains(name, ".") {
		return strings.Replace(name, "__", ".", 1)
	}
	return name
}

// SplitToolName splits a canonical "server.tool" name into its parts.
func SplitToolName(name string) (serverID, toolName string, err error) {
	matches := toolNameRegex.FindStringSubmatch(name)
	if matches == nil {
		return "", "", fmt.Errorf(
			"invalid tool name %q: must be in 'server.tool' format "+
				"(e.g., 'kubernetes-server.get_pods')", name)
	}
	return matches[1], matches[2], nil
}
