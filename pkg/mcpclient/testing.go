package mcpclient

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// InjectSession wires a pre-connected MCP SDK session into c, bypassing the
// registry/createTransport path. Intended for test infrastructure that
// drives an in-memory MCP server.
func (c *Client) InjectSession(serverID string, sdkClient *mcpsdk.Client, session *mcpsdk.ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[serverID] = session
	c.clients[serverID] = sdkClient
}

// NewTestClientFactory returns a ClientFactory whose CreateClient calls
// injectFn on each freshly-created Client instead of dialing real
// transports, letting tests wire in-memory MCP sessions per server.
func NewTestClientFactory(registry *Registry, injectFn func(c *Client)) *ClientFactory {
	return &ClientFactory{
		registry: registry,
		createClientFn: func(_ context.Context, _ []string) (*Client, error) {
			c := newClient(registry)
			injectFn(c)
			return c, nil
		},
	}
}
