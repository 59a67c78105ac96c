// Package profile builds a long-lived model of the user from the
// accumulated conversation log: interests, expertise, communication style
// and emotional patterns, refreshed periodically in the background.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/events"
	"github.com/mnemo-ai/mnemo/internal/oracle"
	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
	"github.com/mnemo-ai/mnemo/internal/tasks"
)

const (
	stateKey = "profile"

	// analysisWindow bounds how many recent turns a single analysis sees,
	// regardless of how large the log has grown.
	analysisWindow = 100
)

const analysisSystemPrompt = `Analyze the user messages and build a profile of the user.
Respond with a JSON object:
{"primary_interests": ["..."], "frequent_topics": ["..."], "communication_style": "...", "expertise_areas": ["..."], "learning_goals": ["..."], "preferences": {"key": "value"}, "emotional_patterns": "..."}
Only output the JSON, no other text.`

// Profile is the analyzed user model, replaced wholesale on each analysis.
type Profile struct {
	PrimaryInterests      []string          `json:"primary_interests"`
	FrequentTopics        []string          `json:"frequent_topics"`
	CommunicationStyle    string            `json:"communication_style"`
	ExpertiseAreas        []string          `json:"expertise_areas"`
	LearningGoals         []string          `json:"learning_goals"`
	Preferences           map[string]string `json:"preferences"`
	EmotionalPatterns     string            `json:"emotional_patterns"`
	LastUpdatedAt         time.Time         `json:"last_updated_at"`
	TotalMessagesAnalyzed int               `json:"total_messages_analyzed"`
}

// state is the persisted analyzer document. The counter survives restarts
// so progress toward the message threshold is not lost.
type state struct {
	Profile       Profile             `json:"profile"`
	Log           []conversation.Turn `json:"log"`
	SinceAnalysis int                 `json:"since_analysis"`
}

// AnalyzerConfig holds dependencies for building an Analyzer.
type AnalyzerConfig struct {
	Oracle oracle.Oracle
	Docs   *docstore.Store
	Runner *tasks.Runner
	Bus    *events.Bus
	Tuning config.ProfileConfig
}

// Analyzer accumulates turns and refreshes the profile when either enough
// messages have arrived or enough time has passed since the last analysis.
// The trigger decision and counter reset happen atomically under one lock,
// so a burst of concurrent turns produces exactly one analysis.
type Analyzer struct {
	oracle oracle.Oracle
	docs   *docstore.Store
	runner *tasks.Runner
	bus    *events.Bus

	messageThreshold int
	analysisInterval time.Duration
	logCap           int

	now func() time.Time

	mu            sync.Mutex
	profile       Profile
	log           []conversation.Turn
	sinceAnalysis int
	lastAnalysis  time.Time
}

// NewAnalyzer creates a profile analyzer, reloading any persisted state.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	t := cfg.Tuning
	if t.MessageThreshold == 0 {
		t.MessageThreshold = 100
	}
	if t.AnalysisInterval == 0 {
		t.AnalysisInterval = config.Duration(time.Hour)
	}
	if t.LogCap == 0 {
		t.LogCap = 500
	}

	a := &Analyzer{
		oracle:           cfg.Oracle,
		docs:             cfg.Docs,
		runner:           cfg.Runner,
		bus:              cfg.Bus,
		messageThreshold: t.MessageThreshold,
		analysisInterval: t.AnalysisInterval.Duration(),
		logCap:           t.LogCap,
		now:              time.Now,
	}
	a.lastAnalysis = a.now()

	var st state
	if ok, err := cfg.Docs.Load(stateKey, &st); err != nil {
		slog.Warn("failed to load profile state", "error", err)
	} else if ok {
		a.profile = st.Profile
		a.log = st.Log
		a.sinceAnalysis = st.SinceAnalysis
	}
	return a
}

// LogTurn records a turn in the analysis log and, if the message or time
// threshold is crossed, starts a background analysis over a snapshot of
// the recent log. The counter resets and the analysis timestamp advances
// at dispatch time, not at completion, so overlapping calls cannot double
// fire.
func (a *Analyzer) LogTurn(userText, agentText string, sentiment conversation.Sentiment) {
	a.mu.Lock()
	a.log = append(a.log, conversation.NewTurn(userText, agentText, sentiment))
	if len(a.log) > a.logCap {
		a.log = a.log[len(a.log)-a.logCap:]
	}
	a.sinceAnalysis++

	now := a.now()
	fire := a.sinceAnalysis >= a.messageThreshold || now.Sub(a.lastAnalysis) >= a.analysisInterval
	var window []conversation.Turn
	if fire {
		a.sinceAnalysis = 0
		a.lastAnalysis = now
		window = append([]conversation.Turn(nil), conversation.Tail(a.log, analysisWindow)...)
	}
	a.persistLocked()
	a.mu.Unlock()

	if !fire {
		return
	}

	a.runner.Dispatch(tasks.Job{
		Name: "profile.analyze",
		Run: func(ctx context.Context) error {
			return a.analyze(ctx, window)
		},
	})
}

// analyze replaces the profile wholesale from the window. Only user text
// and sentiment are sent; agent responses stay out of the payload. Oracle
// failure keeps the previous profile.
func (a *Analyzer) analyze(ctx context.Context, window []conversation.Turn) error {
	var sb strings.Builder
	for _, t := range window {
		fmt.Fprintf(&sb, "[%s %.2f] %s\n", t.Sentiment.Label, t.Sentiment.Score, t.UserText)
	}

	var p Profile
	if err := a.oracle.Invoke(ctx, analysisSystemPrompt, sb.String(), &p); err != nil {
		slog.Debug("profile analysis produced no result", "error", err)
		return nil
	}
	p.LastUpdatedAt = a.now()

	a.mu.Lock()
	p.TotalMessagesAnalyzed = len(window)
	a.profile = p
	a.persistLocked()
	a.mu.Unlock()

	a.bus.Publish(events.New(events.EventProfileUpdated, map[string]any{
		"messages_analyzed": p.TotalMessagesAnalyzed,
	}))
	return nil
}

// Profile returns a copy of the current profile. Zero until the first
// analysis completes.
func (a *Analyzer) Profile() Profile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile
}

// SummaryLine renders a compact one-line digest of the profile for
// prompt injection: up to three interests, up to three expertise areas,
// and the communication style, pipe-separated. Empty when nothing is
// known yet.
func (a *Analyzer) SummaryLine() string {
	a.mu.Lock()
	p := a.profile
	a.mu.Unlock()

	var parts []string
	if len(p.PrimaryInterests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(head(p.PrimaryInterests, 3), ", "))
	}
	if len(p.ExpertiseAreas) > 0 {
		parts = append(parts, "Expertise: "+strings.Join(head(p.ExpertiseAreas, 3), ", "))
	}
	if p.CommunicationStyle != "" {
		parts = append(parts, "Style: "+p.CommunicationStyle)
	}
	return strings.Join(parts, " | ")
}

func head(xs []string, n int) []string {
	if len(xs) <= n {
		return xs
	}
	return xs[:n]
}

// persistLocked saves the profile and log; caller holds a.mu.
func (a *Analyzer) persistLocked() {
	st := state{Profile: a.profile, Log: a.log, SinceAnalysis: a.sinceAnalysis}
	if err := a.docs.Save(stateKey, st); err != nil {
		slog.Warn("failed to persist profile state", "error", err)
	}
}
