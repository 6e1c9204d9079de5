package chain

import "errors"

// ErrNoChainDefinition is returned when a session's chain_definition snapshot
// cannot be decoded, meaning Run cannot recover the resolved chain needed to
// execute it at all.
var ErrNoChainDefinition = errors.New("chain: session has no usable chain_definition snapshot")
