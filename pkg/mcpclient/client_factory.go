package mcpclient

import (
	"context"

	"github.com/tarsy-project/tarsy-core/pkg/masking"
)

// ClientFactory creates Client and Executor instances for a session.
type ClientFactory struct {
	registry       *Registry
	maskingService *masking.Service

	// createClientFn overrides how CreateClient builds a Client. Set by
	// NewTestClientFactory to wire in-memory sessions instead of dialing
	// real transports; nil means use the normal Initialize() path.
	createClientFn func(ctx context.Context, serverIDs []string) (*Client, error)
}

// NewClientFactory creates a factory bound to registry. maskingService may
// be nil, in which case masking is skipped entirely.
func NewClientFactory(registry *Registry, maskingService *masking.Service) *ClientFactory {
	return &ClientFactory{registry: registry, maskingService: maskingService}
}

// CreateClient connects to serverIDs and returns the resulting Client. The
// caller owns the returned Client and must Close it when done.
func (f *ClientFactory) CreateClient(ctx context.Context, serverIDs []string) (*Client, error) {
	if f.createClientFn != nil {
		return f.createClientFn(ctx, serverIDs)
	}

	client := newClient(f.registry)
	if err := client.Initialize(ctx, serverIDs); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// CreateExecutor creates a fully-wired Executor for a session: the primary
// entry point used by the chain/agent layer to obtain a ToolExecutor.
func (f *ClientFactory) CreateExecutor(
	ctx context.Context,
	serverIDs []string,
	toolFilter map[string][]string,
) (*Executor, *Client, error) {
	client, err := f.CreateClient(ctx, serverIDs)
	if err != nil {
		return nil, nil, err
	}
	return NewExecutor(client, f.registry, serverIDs, toolFilter, f.maskingService), client, nil
}
