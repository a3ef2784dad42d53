package chat

import (
	"slices"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
)

// TokenBudget bounds how much conversation history goes into the context
// window.
type TokenBudget struct {
	MaxHistoryTokens int
	MaxInputTokens   int
	ReservedTokens   int // system prompt and response headroom
}

// DefaultTokenBudget returns conservative defaults for Gemini models.
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		MaxHistoryTokens: 8000,
		MaxInputTokens:   2000,
		ReservedTokens:   4000,
	}
}

// estimateTokens is a rough count: runes divided by 2. Conservative for both
// English (~4 chars/token) and CJK (~1.5 chars/token) text.
func estimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 2
}

func estimateMessagesTokens(msgs []*ai.Message) int {
	total := 0
	for _, msg := range msgs {
		for _, part := range msg.Content {
			total += estimateTokens(part.Text)
		}
	}
	return total
}

// truncateHistory drops the oldest messages until the estimate fits the
// budget. A leading system message is always kept.
func (c *Chat) truncateHistory(msgs []*ai.Message, budget int) []*ai.Message {
	if len(msgs) == 0 {
		return msgs
	}

	currentTokens := estimateMessagesTokens(msgs)
	if currentTokens <= budget {
		return msgs
	}

	c.logger.Debug("truncating history",
		"current_tokens", currentTokens,
		"budget", budget,
		"message_count", len(msgs))

	result := make([]*ai.Message, 0, len(msgs))
	startIdx := 0
	if msgs[0].Role == ai.RoleSystem {
		result = append(result, msgs[0])
		startIdx = 1
	}

	// Walk newest to oldest until the budget runs out, then restore order.
	remaining := budget - estimateMessagesTokens(result)
	kept := make([]*ai.Message, 0)
	for i := len(msgs) - 1; i >= startIdx; i-- {
		msgTokens := estimateMessagesTokens(msgs[i : i+1])
		if remaining < msgTokens {
			break
		}
		kept = append(kept, msgs[i])
		remaining -= msgTokens
	}
	slices.Reverse(kept)
	result = append(result, kept...)

	c.logger.Debug("history truncated",
		"original_count", len(msgs),
		"new_count", len(result))

	return result
}
