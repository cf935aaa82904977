package llm

import "strings"

// ChatTurn is a single turn of the client-supplied conversation.
// The caller sends the full ordered history on every request; nothing is
// persisted server-side.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// RenderHistory flattens a conversation into the transcript format the model
// is prompted with: one "Role: text" line per turn, in original order.
// An empty history renders to the empty string.
func RenderHistory(history []ChatTurn) string {
	if len(history) == 0 {
		return ""
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, capitalize(turn.Role)+": "+turn.Text)
	}
	return strings.Join(lines, "\n")
}

func capitalize(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

// Usage holds token usage reported by the upstream API.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
