package chain

import (
	"context"

	"github.com/tarsy-project/tarsy-core/pkg/mcpclient"
)

// MCPExecutorFactory adapts *mcpclient.ClientFactory to ToolExecutorFactory,
// the seam this package actually depends on. The concrete factory's
// CreateExecutor returns a *Client alongside the *Executor so the caller
// can read FailedServers(); this adapter folds that into a single Create
// call so the rest of the package never touches *mcpclient.Client directly.
// The returned Executor.Close already closes its underlying Client, so the
// close function handed back is just executor.Close.
type MCPExecutorFactory struct {
	factory *mcpclient.ClientFactory
}

// NewMCPExecutorFactory wraps factory.
func NewMCPExecutorFactory(factory *mcpclient.ClientFactory) *MCPExecutorFactory {
	return &MCPExecutorFactory{factory: factory}
}

// Create builds a ToolExecutor plus its session's failed-server map and a
// close function. An empty serverIDs list still succeeds, yielding an
// executor with no tools — the agent core's own MCP-less path (no server
// configured for this agent).
func (a *MCPExecutorFactory) Create(
	ctx context.Context,
	serverIDs []string,
	toolFilter map[string][]string,
) (mcpclient.ToolExecutor, map[string]string, func() error, error) {
	executor, client, err := a.factory.CreateExecutor(ctx, serverIDs, toolFilter)
	if err != nil {
		return nil, nil, nil, err
	}
	return executor, client.FailedServers(), executor.Close, nil
}
