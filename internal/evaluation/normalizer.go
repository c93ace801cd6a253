// Package evaluation implements the interview evaluation pipeline: transcript
// normalization, LLM-backed conversation extraction, per-answer scoring,
// and overall aggregation with a completeness penalty.
package evaluation

import (
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// Normalize reduces a raw transcript to role/content messages. Records that
// are not mappings with string role and content are dropped silently; the
// normalizer never fails.
func Normalize(raw []map[string]any) []domain.Message {
	normalized := make([]domain.Message, 0, len(raw))
	for _, msg := range raw {
		if msg == nil {
			continue
		}
		role, ok := msg["role"].(string)
		if !ok {
			continue
		}
		content, ok := msg["content"].(string)
		if !ok {
			continue
		}
		normalized = append(normalized, domain.Message{
			Role:    role,
			Content: textx.SanitizeText(content),
		})
	}
	return normalized
}
