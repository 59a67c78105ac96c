package working

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/episodic"
	"github.com/mnemo-ai/mnemo/internal/index"
	"github.com/mnemo-ai/mnemo/internal/learning"
	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
	"github.com/mnemo-ai/mnemo/internal/tasks"
)

// routeOracle answers each pipeline's prompt with its own canned payload
// and keeps the payloads it was asked to summarize.
type routeOracle struct {
	summary    string
	extraction string
	importance string

	mu         sync.Mutex
	summarized []string
}

func (r *routeOracle) Invoke(_ context.Context, systemPrompt, userPayload string, out any) error {
	var payload string
	switch {
	case strings.HasPrefix(systemPrompt, "Summarize"):
		r.mu.Lock()
		r.summarized = append(r.summarized, userPayload)
		r.mu.Unlock()
		payload = r.summary
	case strings.HasPrefix(systemPrompt, "Extract important"):
		payload = r.extraction
	default:
		payload = r.importance
	}
	return json.Unmarshal([]byte(payload), out)
}

func (r *routeOracle) lastSummarized() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.summarized) == 0 {
		return ""
	}
	return r.summarized[len(r.summarized)-1]
}

type fixture struct {
	orchestrator *Orchestrator
	idx          *index.Mock
	runner       *tasks.Runner
	dir          string
}

func newFixture(t *testing.T, o *routeOracle) *fixture {
	t.Helper()
	if o.importance == "" {
		o.importance = `{"importance": 0.7}`
	}

	dir := t.TempDir()
	idx := index.NewMock()
	runner := tasks.NewRunner(16, 2)
	runner.Start(context.Background())
	t.Cleanup(runner.Stop)

	docs := docstore.New(dir)
	epi := episodic.NewStore(episodic.StoreConfig{Index: idx, Oracle: o, Runner: runner})
	catalog := learning.NewCatalog(docs, nil)

	return &fixture{
		orchestrator: NewOrchestrator(OrchestratorConfig{
			Oracle:   o,
			Episodic: epi,
			Catalog:  catalog,
			Docs:     docs,
			Runner:   runner,
			Bus:      nil,
			Tuning:   config.WorkingConfig{},
		}),
		idx:    idx,
		runner: runner,
		dir:    dir,
	}
}

func recordTurns(f *fixture, n int, priority bool) {
	for i := 0; i < n; i++ {
		f.orchestrator.Record("user message", "agent reply", conversation.Neutral(), priority)
	}
	f.runner.Wait()
}

func TestRecord_SummaryAfterTrigger(t *testing.T) {
	f := newFixture(t, &routeOracle{
		summary:    `{"summary": "discussed travel plans", "key_topics": ["travel"]}`,
		extraction: `{"important_facts": [], "importance_score": 0}`,
	})

	recordTurns(f, 4, false)
	if got := f.orchestrator.ShortTermContext(); got != "" {
		t.Errorf("expected no summary below trigger, got %q", got)
	}

	recordTurns(f, 1, false)
	if got := f.orchestrator.ShortTermContext(); got != "discussed travel plans" {
		t.Errorf("expected summary after trigger, got %q", got)
	}
}

func TestRecord_ExtractionThreshold(t *testing.T) {
	f := newFixture(t, &routeOracle{
		summary:    `{"summary": "s"}`,
		extraction: `{"important_facts": ["user lives in lisbon"], "importance_score": 0.3}`,
	})

	recordTurns(f, 5, false)
	if f.idx.Count() != 0 {
		t.Errorf("expected no episodic writes below threshold, got %d", f.idx.Count())
	}
}

func TestRecord_ExplicitPriorityBypassesThreshold(t *testing.T) {
	f := newFixture(t, &routeOracle{
		summary:    `{"summary": "s"}`,
		extraction: `{"important_facts": ["user lives in lisbon"], "importance_score": 0.0}`,
	})

	recordTurns(f, 5, true)
	if f.idx.Count() != 1 {
		t.Errorf("expected 1 episodic write under explicit priority, got %d", f.idx.Count())
	}
}

func TestRecord_QualifyingFactsStored(t *testing.T) {
	f := newFixture(t, &routeOracle{
		summary:    `{"summary": "s"}`,
		extraction: `{"important_facts": ["fact one", "fact two"], "importance_score": 0.8}`,
	})

	recordTurns(f, 5, false)
	if f.idx.Count() != 2 {
		t.Errorf("expected 2 episodic writes, got %d", f.idx.Count())
	}
}

func TestRecord_BufferEviction(t *testing.T) {
	f := newFixture(t, &routeOracle{
		summary:    `{"summary": "s"}`,
		extraction: `{"important_facts": [], "importance_score": 0}`,
	})

	recordTurns(f, 12, false)

	var st state
	ok, err := docstore.New(f.dir).Load(stateKey, &st)
	if err != nil || !ok {
		t.Fatalf("load state: ok=%v err=%v", ok, err)
	}
	if len(st.Buffer) != 10 {
		t.Errorf("expected buffer capped at 10, got %d", len(st.Buffer))
	}
}

func TestRecord_EvictedTurnsAbsentFromSummarization(t *testing.T) {
	o := &routeOracle{
		summary:    `{"summary": "s"}`,
		extraction: `{"important_facts": [], "importance_score": 0}`,
	}
	f := newFixture(t, o)

	for i := 1; i <= 12; i++ {
		f.orchestrator.Record(fmt.Sprintf("topic number %d", i), "agent reply", conversation.Neutral(), false)
		f.runner.Wait()
	}

	payload := o.lastSummarized()
	if payload == "" {
		t.Fatal("expected at least one summarization")
	}
	if strings.Contains(payload, "topic number 1\n") {
		t.Errorf("evicted turn leaked into summarization payload:\n%s", payload)
	}
	if !strings.Contains(payload, "topic number 12") {
		t.Errorf("latest turn missing from summarization payload:\n%s", payload)
	}
}

func TestNewOrchestrator_ReloadsState(t *testing.T) {
	o := &routeOracle{
		summary:    `{"summary": "carried across restarts"}`,
		extraction: `{"important_facts": [], "importance_score": 0}`,
	}
	f := newFixture(t, o)
	recordTurns(f, 5, false)

	reloaded := NewOrchestrator(OrchestratorConfig{
		Oracle: o,
		Docs:   docstore.New(f.dir),
		Tuning: config.WorkingConfig{},
	})
	if got := reloaded.ShortTermContext(); got != "carried across restarts" {
		t.Errorf("expected summary restored, got %q", got)
	}
}

func TestProcedures_DelegatesToCatalog(t *testing.T) {
	f := newFixture(t, &routeOracle{
		summary:    `{"summary": "s"}`,
		extraction: `{"important_facts": [], "importance_score": 0}`,
	})

	if _, err := f.orchestrator.catalog.Teach("deploy service", []string{"build", "ship"}, "", nil); err != nil {
		t.Fatalf("teach: %v", err)
	}

	procs := f.orchestrator.Procedures("deploy")
	if len(procs) != 1 || procs[0].Name != "deploy service" {
		t.Errorf("unexpected procedures: %+v", procs)
	}
}
