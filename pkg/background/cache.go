package background

import (
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolCache is the snapshot GET /api/v1/system/mcp-servers serves (spec
// §6): server id to its tool list, stamped with when it was taken so a
// caller can tell a stale-but-present snapshot from the empty one it gets
// during the first ~15s after startup, before any sweep has run.
type ToolCache struct {
	mu        sync.RWMutex
	tools     map[string][]*mcpsdk.Tool
	updatedAt time.Time
}

func newToolCache() *ToolCache {
	return &ToolCache{}
}

func (c *ToolCache) set(tools map[string][]*mcpsdk.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
	c.updatedAt = time.Now().UTC()
}

// Snapshot returns the last refreshed tool map and when it was taken.
// A zero updatedAt means no refresh has happened yet.
func (c *ToolCache) Snapshot() (tools map[string][]*mcpsdk.Tool, updatedAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]*mcpsdk.Tool, len(c.tools))
	for k, v := range c.tools {
		out[k] = v
	}
	return out, c.updatedAt
}
