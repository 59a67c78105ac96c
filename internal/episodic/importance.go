package episodic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mnemo-ai/mnemo/internal/conversation"
)

const importanceSystemPrompt = `You are a memory importance evaluator. Score 0-1 based on emotional intensity, novelty, and significance.
Respond with a JSON object: {"importance": <number 0-1>, "reasoning": "<brief explanation>"}
Only output the JSON, no other text.`

// importanceResult is the oracle schema for importance scoring. The
// reasoning is advisory and never persisted.
type importanceResult struct {
	Importance float64 `json:"importance"`
	Reasoning  string  `json:"reasoning"`
}

// scoreImportance asks the oracle to rate the candidate content. Oracle
// failure falls back to the configured default (0.5 unless overridden) so
// ingestion never crashes on a missing model.
func (s *Store) scoreImportance(ctx context.Context, content string, emotion conversation.Sentiment, recency time.Duration) float64 {
	payload := fmt.Sprintf("Event: %s\nEmotion: %s (score: %.2f)\nRecency hours: %.1f\nRate importance 0-1:",
		content, emotion.Label, emotion.Score, recency.Hours())

	var result importanceResult
	if err := s.oracle.Invoke(ctx, importanceSystemPrompt, payload, &result); err != nil {
		slog.Warn("importance scoring failed, using default", "error", err, "default", s.defaultImportance)
		return s.defaultImportance
	}
	return clampImportance(result.Importance)
}
