package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a generator call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// Add accumulates usage across calls made for the same suggestion.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	if u.Model == "" {
		u.Model = other.Model
	}
	return u
}

// AgentMeta holds operational metadata for one suggestion round.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}
