package session

import (
	"github.com/AnthusAI/Tactus/model"
)

// TokenBudget drops the oldest non-system messages until the estimated token
// count fits within max. System messages are always kept; tool-result
// messages get no special protection and are dropped like any other.
// Estimation uses a plain character-count heuristic (roughly four
// characters per token), matching the "estimated token count" language in
// spec.md §4.F rather than a provider-specific tokenizer.
func TokenBudget(max int) Filter {
	return FilterFunc(func(messages []model.Message) []model.Message {
		if max <= 0 || estimateTokens(messages) <= max {
			return messages
		}
		var system []model.Message
		rest := make([]model.Message, 0, len(messages))
		for _, m := range messages {
			if m.Role == model.RoleSystem {
				system = append(system, m)
				continue
			}
			rest = append(rest, m)
		}
		kept := make([]model.Message, len(rest))
		copy(kept, rest)
		for len(kept) > 0 && estimateTokens(append(system, kept...)) > max {
			kept = kept[1:]
		}
		return append(system, kept...)
	})
}

// LimitToolResults retains only the last k messages with role Tool.
func LimitToolResults(k int) Filter {
	return FilterFunc(func(messages []model.Message) []model.Message {
		if k < 0 {
			return messages
		}
		toolIdx := make([]int, 0)
		for i, m := range messages {
			if m.Role == model.RoleTool {
				toolIdx = append(toolIdx, i)
			}
		}
		if len(toolIdx) <= k {
			return messages
		}
		drop := make(map[int]bool, len(toolIdx)-k)
		for _, i := range toolIdx[:len(toolIdx)-k] {
			drop[i] = true
		}
		out := make([]model.Message, 0, len(messages))
		for i, m := range messages {
			if drop[i] {
				continue
			}
			out = append(out, m)
		}
		return out
	})
}

// HideClass drops every message whose Class is in classes.
func HideClass(classes ...string) Filter {
	hidden := make(map[string]bool, len(classes))
	for _, c := range classes {
		hidden[c] = true
	}
	return FilterFunc(func(messages []model.Message) []model.Message {
		out := make([]model.Message, 0, len(messages))
		for _, m := range messages {
			if hidden[m.Class] {
				continue
			}
			out = append(out, m)
		}
		return out
	})
}

// Composed applies each filter in chain in order, feeding each one's output
// to the next.
func Composed(chain ...Filter) Filter {
	return FilterFunc(func(messages []model.Message) []model.Message {
		for _, f := range chain {
			messages = f.Apply(messages)
		}
		return messages
	})
}

func estimateTokens(messages []model.Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Text())
	}
	return chars / 4
}
