package llmclient

import (
	"strings"

	"github.com/tarsy-project/tarsy-core/pkg/model"
)

// finalAnswerMarker is the literal, case-sensitive prefix that promotes an
// interaction to FINAL_ANSWER (spec §4.6).
const finalAnswerMarker = "Final Answer:"

// DetectFinalAnswer inspects only the latest assistant message in
// conversation; earlier assistant messages containing the marker do not
// count (spec §4.6, invariant 10).
func DetectFinalAnswer(conversation []model.Message) bool {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role != model.RoleAssistant {
			continue
		}
		return strings.Contains(conversation[i].Content, finalAnswerMarker)
	}
	return false
}
