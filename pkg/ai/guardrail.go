package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// GuardrailResult is the verdict on one piece of generated content.
type GuardrailResult struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Guardrail screens generated text before it may be sent. A failed check is
// never retried with different content in the same tick.
type Guardrail interface {
	Check(text string) GuardrailResult
}

// RuleGuardrail is the default filter: length bounds, no empty output, and
// a configurable blocklist of phrases that must never reach a lead.
type RuleGuardrail struct {
	MaxLength      int
	BlockedPhrases []string
}

func NewRuleGuardrail(blocked []string) *RuleGuardrail {
	return &RuleGuardrail{
		// Carrier segment limit for concatenated SMS.
		MaxLength:      1600,
		BlockedPhrases: blocked,
	}
}

func (g *RuleGuardrail) Check(text string) GuardrailResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return GuardrailResult{Passed: false, Message: "empty generation"}
	}
	if g.MaxLength > 0 && utf8.RuneCountInString(trimmed) > g.MaxLength {
		return GuardrailResult{
			Passed:  false,
			Message: fmt.Sprintf("content exceeds %d characters", g.MaxLength),
		}
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range g.BlockedPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return GuardrailResult{
				Passed:  false,
				Message: fmt.Sprintf("blocked phrase %q", phrase),
			}
		}
	}
	return GuardrailResult{Passed: true}
}
