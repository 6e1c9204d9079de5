package chain

import (
	"encoding/json"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/config"
)

// Snapshot is what the ingress service (component 13) marshals into
// model.Session.ChainDefinition at session-creation time. ClaimNextPendingSession
// returns only the Session row, so the resolved chain plus everything the
// chain executor needs to drive it without consulting the original request
// must travel inside that one JSON blob — that is the only way a different
// replica can pick up a claimed session after a crash (spec §3, §4.9).
type Snapshot struct {
	Chain          *config.ChainConfig `json:"chain"`
	AlertData      string              `json:"alert_data"`
	RunbookContent string              `json:"runbook_content"`
}

// EncodeSnapshot marshals s for storage in Session.ChainDefinition.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot unmarshals a Session.ChainDefinition blob back into a
// Snapshot.
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("chain: decoding chain_definition snapshot: %w", err)
	}
	if s.Chain == nil {
		return nil, fmt.Errorf("chain: chain_definition snapshot has no chain")
	}
	return &s, nil
}
