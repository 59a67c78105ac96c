package profile

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
	"github.com/mnemo-ai/mnemo/internal/tasks"
)

type stubOracle struct {
	payload string
	calls   int64
}

func (s *stubOracle) Invoke(_ context.Context, _, _ string, out any) error {
	atomic.AddInt64(&s.calls, 1)
	return json.Unmarshal([]byte(s.payload), out)
}

// captureOracle keeps the last payload it was asked to analyze.
type captureOracle struct {
	reply string

	mu   sync.Mutex
	seen string
}

func (c *captureOracle) Invoke(_ context.Context, _, userPayload string, out any) error {
	c.mu.Lock()
	c.seen = userPayload
	c.mu.Unlock()
	return json.Unmarshal([]byte(c.reply), out)
}

func (c *captureOracle) lastPayload() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

const profilePayload = `{
	"primary_interests": ["astronomy", "cooking", "chess", "gardening"],
	"frequent_topics": ["telescopes"],
	"communication_style": "direct",
	"expertise_areas": ["physics"],
	"learning_goals": ["learn go"],
	"preferences": {"tone": "concise"},
	"emotional_patterns": "curious"
}`

func newTestAnalyzer(t *testing.T, o *stubOracle) (*Analyzer, *tasks.Runner) {
	t.Helper()
	runner := tasks.NewRunner(16, 1)
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)

	a := NewAnalyzer(AnalyzerConfig{
		Oracle: o,
		Docs:   docstore.New(t.TempDir()),
		Runner: runner,
		Tuning: config.ProfileConfig{},
	})
	return a, runner
}

func TestLogTurn_OneAnalysisPerHundredTurns(t *testing.T) {
	o := &stubOracle{payload: profilePayload}
	a, runner := newTestAnalyzer(t, o)

	for i := 0; i < 100; i++ {
		a.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()

	if got := atomic.LoadInt64(&o.calls); got != 1 {
		t.Fatalf("expected exactly 1 analysis, got %d", got)
	}

	// Counter reset: the next 99 turns stay quiet, the 100th fires again.
	for i := 0; i < 99; i++ {
		a.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()
	if got := atomic.LoadInt64(&o.calls); got != 1 {
		t.Fatalf("expected no analysis before the next threshold, got %d", got)
	}

	a.LogTurn("message", "ok", conversation.Neutral())
	runner.Wait()
	if got := atomic.LoadInt64(&o.calls); got != 2 {
		t.Errorf("expected second analysis at turn 200, got %d", got)
	}
}

func TestLogTurn_TimeTrigger(t *testing.T) {
	o := &stubOracle{payload: profilePayload}
	a, runner := newTestAnalyzer(t, o)

	base := time.Now()
	a.now = func() time.Time { return base }
	a.lastAnalysis = base

	a.LogTurn("early", "ok", conversation.Neutral())
	runner.Wait()
	if atomic.LoadInt64(&o.calls) != 0 {
		t.Fatal("no analysis expected before the interval elapses")
	}

	a.now = func() time.Time { return base.Add(2 * time.Hour) }
	a.LogTurn("late", "ok", conversation.Neutral())
	runner.Wait()
	if got := atomic.LoadInt64(&o.calls); got != 1 {
		t.Errorf("expected analysis after the interval, got %d", got)
	}
}

func TestAnalyze_ReplacesProfileWholesale(t *testing.T) {
	o := &stubOracle{payload: profilePayload}
	a, runner := newTestAnalyzer(t, o)

	for i := 0; i < 100; i++ {
		a.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()

	p := a.Profile()
	if p.CommunicationStyle != "direct" {
		t.Errorf("unexpected style: %q", p.CommunicationStyle)
	}
	if p.TotalMessagesAnalyzed != 100 {
		t.Errorf("expected 100 messages analyzed, got %d", p.TotalMessagesAnalyzed)
	}
	if p.LastUpdatedAt.IsZero() {
		t.Error("expected update timestamp set")
	}
	if p.Preferences["tone"] != "concise" {
		t.Errorf("unexpected preferences: %v", p.Preferences)
	}
	if p.EmotionalPatterns != "curious" {
		t.Errorf("unexpected emotional patterns: %q", p.EmotionalPatterns)
	}
}

func TestAnalyze_TotalMessagesIsWindowSize(t *testing.T) {
	o := &stubOracle{payload: profilePayload}
	a, runner := newTestAnalyzer(t, o)

	// Two full cycles. The count reflects what the latest analysis saw,
	// not a running total across cycles.
	for i := 0; i < 200; i++ {
		a.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()

	if got := atomic.LoadInt64(&o.calls); got != 2 {
		t.Fatalf("expected 2 analyses, got %d", got)
	}
	if got := a.Profile().TotalMessagesAnalyzed; got != 100 {
		t.Errorf("expected 100 messages analyzed after second cycle, got %d", got)
	}
}

func TestSummaryLine(t *testing.T) {
	a, _ := newTestAnalyzer(t, &stubOracle{payload: profilePayload})

	if got := a.SummaryLine(); got != "" {
		t.Errorf("expected empty line before any analysis, got %q", got)
	}

	a.profile = Profile{
		PrimaryInterests:   []string{"astronomy", "cooking", "chess", "gardening"},
		ExpertiseAreas:     []string{"physics"},
		CommunicationStyle: "direct",
	}

	got := a.SummaryLine()
	want := "Interests: astronomy, cooking, chess | Expertise: physics | Style: direct"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestAnalyze_PayloadCarriesSentimentScores(t *testing.T) {
	o := &captureOracle{reply: profilePayload}
	runner := tasks.NewRunner(16, 1)
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)

	a := NewAnalyzer(AnalyzerConfig{
		Oracle: o,
		Docs:   docstore.New(t.TempDir()),
		Runner: runner,
		Tuning: config.ProfileConfig{},
	})
	for i := 0; i < 100; i++ {
		a.LogTurn("loved the telescope advice", "ok", conversation.Sentiment{Label: conversation.SentimentPositive, Score: 0.8})
	}
	runner.Wait()

	seen := o.lastPayload()
	if !strings.Contains(seen, "[POSITIVE 0.80] loved the telescope advice") {
		t.Errorf("expected label and score per turn, got:\n%s", seen)
	}
	if strings.Contains(seen, "ok") {
		t.Error("agent text must stay out of the analysis payload")
	}
}

func TestAnalyzer_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	runner := tasks.NewRunner(16, 1)
	runner.Start(context.Background())
	defer runner.Stop()

	o := &stubOracle{payload: profilePayload}
	a := NewAnalyzer(AnalyzerConfig{
		Oracle: o,
		Docs:   docstore.New(dir),
		Runner: runner,
		Tuning: config.ProfileConfig{},
	})
	for i := 0; i < 100; i++ {
		a.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()

	reloaded := NewAnalyzer(AnalyzerConfig{
		Oracle: o,
		Docs:   docstore.New(dir),
		Runner: runner,
		Tuning: config.ProfileConfig{},
	})
	if reloaded.Profile().CommunicationStyle != "direct" {
		t.Error("expected profile restored from disk")
	}
}

func TestAnalyzer_CounterSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	runner := tasks.NewRunner(16, 1)
	runner.Start(context.Background())
	defer runner.Stop()

	o := &stubOracle{payload: profilePayload}
	a := NewAnalyzer(AnalyzerConfig{
		Oracle: o,
		Docs:   docstore.New(dir),
		Runner: runner,
		Tuning: config.ProfileConfig{},
	})
	for i := 0; i < 60; i++ {
		a.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()
	if atomic.LoadInt64(&o.calls) != 0 {
		t.Fatal("no analysis expected below the threshold")
	}

	// A restart must not reset progress toward the message threshold.
	reloaded := NewAnalyzer(AnalyzerConfig{
		Oracle: o,
		Docs:   docstore.New(dir),
		Runner: runner,
		Tuning: config.ProfileConfig{},
	})
	for i := 0; i < 40; i++ {
		reloaded.LogTurn("message", "ok", conversation.Neutral())
	}
	runner.Wait()
	if got := atomic.LoadInt64(&o.calls); got != 1 {
		t.Errorf("expected the reloaded analyzer to fire at 100 combined turns, got %d", got)
	}
}
