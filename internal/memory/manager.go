// Package memory wires the four memory pipelines together behind a single
// manager: episodic store, working-memory orchestrator, continuous
// learning and the profile analyzer all feed from the same turn stream but
// fail independently.
package memory

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/episodic"
	"github.com/mnemo-ai/mnemo/internal/events"
	"github.com/mnemo-ai/mnemo/internal/index"
	"github.com/mnemo-ai/mnemo/internal/learning"
	"github.com/mnemo-ai/mnemo/internal/models"
	"github.com/mnemo-ai/mnemo/internal/oracle"
	"github.com/mnemo-ai/mnemo/internal/profile"
	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
	"github.com/mnemo-ai/mnemo/internal/tasks"
	"github.com/mnemo-ai/mnemo/internal/working"
)

// Manager owns the full memory subsystem lifecycle: model registry,
// semantic index, background runner and the four pipelines.
type Manager struct {
	cfg    *config.Config
	runner *tasks.Runner
	bus    *events.Bus
	cron   *maintenance

	sentiment *conversation.Analyzer
	episodic  *episodic.Store
	working   *working.Orchestrator
	catalog   *learning.Catalog
	extractor *learning.Extractor
	profile   *profile.Analyzer
}

// New builds the memory subsystem from configuration and starts the
// background runner. Callers must Close the manager to drain in-flight
// tasks.
func New(ctx context.Context, cfg *config.Config) (*Manager, error) {
	dir := cfg.Memory.Dir
	if dir == "" {
		dir = filepath.Join(config.MnemoPath(), "memory")
	}

	registry := models.NewRegistry(cfg.Models)
	chat, err := registry.Default(ctx)
	if err != nil {
		return nil, fmt.Errorf("default model: %w", err)
	}
	orc := oracle.NewChatOracle(chat)

	embedder, err := index.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	idx, err := index.NewChromem(ctx, filepath.Join(dir, "index"), embedder)
	if err != nil {
		return nil, fmt.Errorf("semantic index: %w", err)
	}

	return build(ctx, cfg, dir, orc, idx)
}

// build assembles the pipelines around explicit oracle and index
// implementations. Split out so tests can supply fakes.
func build(ctx context.Context, cfg *config.Config, dir string, orc oracle.Oracle, idx index.Index) (*Manager, error) {
	bus := events.NewBus()
	runner := tasks.NewRunner(cfg.Tasks.QueueSize, cfg.Tasks.Workers)
	runner.Start(ctx)

	docs := docstore.New(filepath.Join(dir, "state"))

	epi := episodic.NewStore(episodic.StoreConfig{
		Index:  idx,
		Oracle: orc,
		Runner: runner,
		Bus:    bus,
		Tuning: cfg.Memory.Episodic,
	})
	catalog := learning.NewCatalog(docs, bus)
	extractor := learning.NewExtractor(orc, catalog, runner, cfg.Memory.Learning)
	work := working.NewOrchestrator(working.OrchestratorConfig{
		Oracle:   orc,
		Episodic: epi,
		Catalog:  catalog,
		Docs:     docs,
		Runner:   runner,
		Bus:      bus,
		Tuning:   cfg.Memory.Working,
	})
	prof := profile.NewAnalyzer(profile.AnalyzerConfig{
		Oracle: orc,
		Docs:   docs,
		Runner: runner,
		Bus:    bus,
		Tuning: cfg.Memory.Profile,
	})

	m := &Manager{
		cfg:       cfg,
		runner:    runner,
		bus:       bus,
		sentiment: conversation.NewAnalyzer(orc),
		episodic:  epi,
		working:   work,
		catalog:   catalog,
		extractor: extractor,
		profile:   prof,
	}
	m.cron = newMaintenance(m, cfg.Maintenance)
	return m, nil
}

// RecordTurn feeds one user/agent exchange into every pipeline. Sentiment
// is analyzed once and shared; each pipeline then reacts independently, so
// a failure in one never starves the others. Returns the analyzed
// sentiment.
func (m *Manager) RecordTurn(ctx context.Context, userText, agentText string, explicitPriority bool) conversation.Sentiment {
	sentiment := m.sentiment.Analyze(ctx, userText)

	m.working.Record(userText, agentText, sentiment, explicitPriority)
	m.extractor.Record(userText, agentText)
	m.profile.LogTurn(userText, agentText, sentiment)

	return sentiment
}

// Teach runs explicit teaching extraction on the message. Procedures land
// in the catalog; facts and preferences are remembered episodically.
func (m *Manager) Teach(ctx context.Context, message string) (learning.TeachingResult, error) {
	result, err := m.extractor.ExtractExplicit(ctx, message)
	if err != nil {
		return learning.TeachingResult{}, err
	}
	if result.StoreAsEpisodic {
		if _, err := m.episodic.Add(ctx, result.Description, "", "", conversation.Neutral()); err != nil {
			return result, fmt.Errorf("store teaching: %w", err)
		}
	}
	return result, nil
}

// Episodic returns the episodic store.
func (m *Manager) Episodic() *episodic.Store { return m.episodic }

// Working returns the working-memory orchestrator.
func (m *Manager) Working() *working.Orchestrator { return m.working }

// Catalog returns the procedure catalog.
func (m *Manager) Catalog() *learning.Catalog { return m.catalog }

// Profile returns the profile analyzer.
func (m *Manager) Profile() *profile.Analyzer { return m.profile }

// Bus returns the event bus for observing pipeline activity.
func (m *Manager) Bus() *events.Bus { return m.bus }

// Wait blocks until every dispatched background task has finished.
func (m *Manager) Wait() {
	m.runner.Wait()
}

// Close stops scheduled maintenance and drains the background runner.
func (m *Manager) Close() {
	m.cron.stop()
	m.runner.Stop()
}
