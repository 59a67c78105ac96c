// Package conversation holds the shared turn model consumed by every
// memory pipeline.
package conversation

import (
	"fmt"
	"strings"
	"time"
)

// SentimentLabel classifies the emotional tone of a text.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNegative SentimentLabel = "NEGATIVE"
	SentimentNeutral  SentimentLabel = "NEUTRAL"
)

// Sentiment pairs a label with a confidence score in [0,1].
type Sentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// Neutral returns the default sentiment used when no analysis is available.
func Neutral() Sentiment {
	return Sentiment{Label: SentimentNeutral, Score: 0.5}
}

// Clamp normalizes the sentiment into its invariants: score in [0,1],
// label one of the three known values.
func (s Sentiment) Clamp() Sentiment {
	if s.Score < 0 {
		s.Score = 0
	}
	if s.Score > 1 {
		s.Score = 1
	}
	switch s.Label {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		s.Label = SentimentNeutral
	}
	return s
}

// Turn is a single user/agent exchange. Turns are immutable once created.
type Turn struct {
	UserText  string    `json:"user"`
	AgentText string    `json:"agent"`
	Sentiment Sentiment `json:"sentiment"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(userText, agentText string, sentiment Sentiment) Turn {
	return Turn{
		UserText:  userText,
		AgentText: agentText,
		Sentiment: sentiment.Clamp(),
		Timestamp: time.Now(),
	}
}

// AverageScore returns the mean sentiment score across turns.
// Note this deliberately discards label granularity: five turns collapse
// into one score, and callers attach it to a NEUTRAL label.
func AverageScore(turns []Turn) float64 {
	if len(turns) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range turns {
		sum += t.Sentiment.Score
	}
	return sum / float64(len(turns))
}

// Tail returns the last n turns (all of them if fewer than n exist).
func Tail(turns []Turn, n int) []Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// Transcript renders turns as a plain exchange log for oracle payloads.
func Transcript(turns []Turn, withSentiment bool) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "User: %s\n", t.UserText)
		fmt.Fprintf(&sb, "Agent: %s\n", t.AgentText)
		if withSentiment {
			fmt.Fprintf(&sb, "Sentiment: %s (%.2f)\n", t.Sentiment.Label, t.Sentiment.Score)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
