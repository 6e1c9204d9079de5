package agent

// kubernetesToolHints is the built-in KubernetesAgent's tool-selection
// guidance (recovered from the original Python system's agent definitions
// — see DESIGN.md "Component 7"): extra context the MCP registry's own
// per-server instructions don't carry, since it's about which tool to pick
// rather than how to call one.
const kubernetesToolHints = `When investigating Kubernetes alerts, prefer namespace-scoped queries over
cluster-wide listings, and check configuration_contexts_list first in any
multi-cluster environment before calling cluster-scoped tools.`

// NewKubernetesAgent builds the worked-example built-in agent named by
// spec §8 S1 (alert_type "kubernetes"): a ReAct investigator over the
// kubernetes-server MCP tools, with no abstraction beyond a BaseAgent and
// a fixed hints string.
func NewKubernetesAgent(controller Controller) *BaseAgent {
	return NewBaseAgent(controller, kubernetesToolHints)
}
