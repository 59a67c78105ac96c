package conversation

import (
	"context"
	"log/slog"

	"github.com/mnemo-ai/mnemo/internal/oracle"
)

const sentimentSystemPrompt = `Classify the sentiment of the user message.
Respond with a JSON object: {"label": "POSITIVE"|"NEGATIVE"|"NEUTRAL", "score": <number 0-1>}
Only output the JSON, no other text.`

// Analyzer scores the sentiment of user messages.
type Analyzer struct {
	oracle oracle.Oracle
}

// NewAnalyzer creates a sentiment analyzer backed by the given oracle.
func NewAnalyzer(o oracle.Oracle) *Analyzer {
	return &Analyzer{oracle: o}
}

// Analyze returns the sentiment of the message, degrading to Neutral
// when the oracle fails or returns an unknown label.
func (a *Analyzer) Analyze(ctx context.Context, message string) Sentiment {
	var s Sentiment
	if err := a.oracle.Invoke(ctx, sentimentSystemPrompt, message, &s); err != nil {
		slog.Debug("sentiment analysis produced no result", "error", err)
		return Neutral()
	}
	switch s.Label {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s.Clamp()
	default:
		return Neutral()
	}
}
