// Package working maintains short-term memory: a small rolling window of
// recent turns, its rolling summary, and the trigger that promotes
// important facts into the episodic store.
package working

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/episodic"
	"github.com/mnemo-ai/mnemo/internal/events"
	"github.com/mnemo-ai/mnemo/internal/learning"
	"github.com/mnemo-ai/mnemo/internal/oracle"
	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
	"github.com/mnemo-ai/mnemo/internal/tasks"
)

const stateKey = "short_term"

const summarizeSystemPrompt = `Summarize the last interactions in 2-3 sentences. Focus on key topics and user needs.
Respond with a JSON object: {"summary": "...", "key_topics": ["..."]}
Only output the JSON, no other text.`

const extractSystemPrompt = `Extract important information worth remembering long-term. Rate importance 0-1.
Respond with a JSON object: {"important_facts": ["..."], "importance_score": <number 0-1>, "reasoning": "..."}
Only output the JSON, no other text.`

// summaryResult is the oracle schema for short-term summarization.
type summaryResult struct {
	Summary   string   `json:"summary"`
	KeyTopics []string `json:"key_topics"`
}

// extractionResult is the oracle schema for long-term extraction.
type extractionResult struct {
	ImportantFacts  []string `json:"important_facts"`
	ImportanceScore float64  `json:"importance_score"`
	Reasoning       string   `json:"reasoning"`
}

// state is the persisted short-term document, replaced wholesale on save.
type state struct {
	Buffer  []conversation.Turn `json:"buffer"`
	Summary string              `json:"summary"`
}

// OrchestratorConfig holds dependencies for building an Orchestrator.
type OrchestratorConfig struct {
	Oracle   oracle.Oracle
	Episodic *episodic.Store
	Catalog  *learning.Catalog
	Docs     *docstore.Store
	Runner   *tasks.Runner
	Bus      *events.Bus
	Tuning   config.WorkingConfig
}

// Orchestrator is the working-memory pipeline. Recording a turn is
// synchronous and fast; summarization and long-term extraction run as
// independent background tasks over a snapshot of the recent window.
type Orchestrator struct {
	oracle   oracle.Oracle
	episodic *episodic.Store
	catalog  *learning.Catalog
	docs     *docstore.Store
	runner   *tasks.Runner
	bus      *events.Bus

	bufferSize       int
	triggerThreshold int
	extractThreshold float64

	mu      sync.Mutex
	buffer  []conversation.Turn
	summary string
}

// NewOrchestrator creates a working-memory orchestrator, reloading any
// previously persisted buffer and summary.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	t := cfg.Tuning
	if t.BufferSize == 0 {
		t.BufferSize = 10
	}
	if t.TriggerThreshold == 0 {
		t.TriggerThreshold = 5
	}
	if t.ExtractThreshold == 0 {
		t.ExtractThreshold = 0.5
	}

	o := &Orchestrator{
		oracle:           cfg.Oracle,
		episodic:         cfg.Episodic,
		catalog:          cfg.Catalog,
		docs:             cfg.Docs,
		runner:           cfg.Runner,
		bus:              cfg.Bus,
		bufferSize:       t.BufferSize,
		triggerThreshold: t.TriggerThreshold,
		extractThreshold: t.ExtractThreshold,
	}

	var st state
	if ok, err := cfg.Docs.Load(stateKey, &st); err != nil {
		slog.Warn("failed to load short-term state", "error", err)
	} else if ok {
		o.buffer = st.Buffer
		o.summary = st.Summary
	}
	return o
}

// Record appends a turn to the rolling buffer and returns immediately.
// Once the buffer has reached the trigger threshold, every call starts two
// independent background cycles over a snapshot of the recent window:
// short-term summarization and long-term extraction. Snapshotting means
// turns evicted later can never leak into an in-flight cycle's payload.
func (o *Orchestrator) Record(userText, agentText string, sentiment conversation.Sentiment, explicitPriority bool) {
	o.mu.Lock()
	o.buffer = append(o.buffer, conversation.NewTurn(userText, agentText, sentiment))
	if len(o.buffer) > o.bufferSize {
		o.buffer = o.buffer[len(o.buffer)-o.bufferSize:]
	}
	trigger := len(o.buffer) >= o.triggerThreshold
	window := append([]conversation.Turn(nil), conversation.Tail(o.buffer, o.triggerThreshold)...)
	o.persistLocked()
	o.mu.Unlock()

	if !trigger {
		return
	}

	o.runner.Dispatch(tasks.Job{
		Name: "working.summarize",
		Run: func(ctx context.Context) error {
			return o.summarize(ctx, window)
		},
	})
	o.runner.Dispatch(tasks.Job{
		Name: "working.extract",
		Run: func(ctx context.Context) error {
			return o.extract(ctx, window, explicitPriority)
		},
	})
}

// summarize replaces the short-term summary wholesale from the window.
// Oracle failure leaves the previous summary in place.
func (o *Orchestrator) summarize(ctx context.Context, window []conversation.Turn) error {
	var result summaryResult
	if err := o.oracle.Invoke(ctx, summarizeSystemPrompt, conversation.Transcript(window, false), &result); err != nil {
		slog.Debug("short-term summarization produced no result", "error", err)
		return nil
	}
	if result.Summary == "" {
		return nil
	}

	o.mu.Lock()
	o.summary = result.Summary
	o.persistLocked()
	o.mu.Unlock()

	o.bus.Publish(events.New(events.EventSummaryUpdated, map[string]any{
		"topics": result.KeyTopics,
	}))
	return nil
}

// extract promotes important facts from the window into the episodic
// store. The importance gate is 0.5, or 0 under explicit priority. Each
// qualifying fact is stored with the window's average sentiment score on
// a NEUTRAL label; per-turn label granularity is deliberately discarded.
func (o *Orchestrator) extract(ctx context.Context, window []conversation.Turn, explicitPriority bool) error {
	var result extractionResult
	if err := o.oracle.Invoke(ctx, extractSystemPrompt, conversation.Transcript(window, true), &result); err != nil {
		slog.Debug("long-term extraction produced no result", "error", err)
		return nil
	}

	threshold := o.extractThreshold
	if explicitPriority {
		threshold = 0
	}
	if result.ImportanceScore < threshold {
		return nil
	}

	emotion := conversation.Sentiment{
		Label: conversation.SentimentNeutral,
		Score: conversation.AverageScore(window),
	}
	for _, fact := range result.ImportantFacts {
		if _, err := o.episodic.Add(ctx, fact, "", "", emotion); err != nil {
			slog.Warn("failed to store extracted fact", "error", err)
		}
	}
	return nil
}

// ShortTermContext returns the current rolling summary. Empty until the
// first summarization cycle completes.
func (o *Orchestrator) ShortTermContext() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary
}

// Procedures returns catalog procedures matching the query.
func (o *Orchestrator) Procedures(query string) []learning.Procedure {
	return o.catalog.Search(query)
}

// persistLocked saves the buffer tail and summary; caller holds o.mu.
// Save failures keep the in-memory state usable.
func (o *Orchestrator) persistLocked() {
	st := state{Buffer: conversation.Tail(o.buffer, o.bufferSize), Summary: o.summary}
	if err := o.docs.Save(stateKey, st); err != nil {
		slog.Warn("failed to persist short-term state", "error", err)
	}
}
