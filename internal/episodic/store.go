package episodic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/events"
	"github.com/mnemo-ai/mnemo/internal/index"
	"github.com/mnemo-ai/mnemo/internal/oracle"
	"github.com/mnemo-ai/mnemo/internal/tasks"
)

// consolidationBoost is applied to the surviving record of a merge.
const consolidationBoost = 1.1

// StoreConfig holds dependencies for building a Store.
type StoreConfig struct {
	Index  index.Index
	Oracle oracle.Oracle
	Runner *tasks.Runner // nil runs association linking inline
	Bus    *events.Bus
	Tuning config.EpisodicConfig
}

// Store is the episodic memory store. It depends only on the inference
// oracle and the semantic index; there is no fallback retrieval path, so
// index failures propagate as index.ErrUnavailable.
type Store struct {
	index  index.Index
	oracle oracle.Oracle
	runner *tasks.Runner
	bus    *events.Bus

	decayRate         float64
	associationFloor  float64
	maxAssociations   int
	defaultImportance float64

	now func() time.Time
}

// NewStore creates an episodic store. Zero tuning values fall back to the
// documented defaults.
func NewStore(cfg StoreConfig) *Store {
	t := cfg.Tuning
	if t.DecayRate == 0 {
		t.DecayRate = DefaultDecayRate
	}
	if t.AssociationFloor == 0 {
		t.AssociationFloor = 0.3
	}
	if t.MaxAssociations == 0 {
		t.MaxAssociations = 3
	}
	if t.DefaultImportance == 0 {
		t.DefaultImportance = 0.5
	}
	return &Store{
		index:             cfg.Index,
		oracle:            cfg.Oracle,
		runner:            cfg.Runner,
		bus:               cfg.Bus,
		decayRate:         t.DecayRate,
		associationFloor:  t.AssociationFloor,
		maxAssociations:   t.MaxAssociations,
		defaultImportance: t.DefaultImportance,
		now:               time.Now,
	}
}

// Add scores and stores a new record, returning its id. Importance comes
// from the oracle (default on failure); association linking runs in the
// background and never blocks or fails the caller.
func (s *Store) Add(ctx context.Context, content, location, actor string, emotion conversation.Sentiment) (string, error) {
	now := s.now()
	emotion = emotion.Clamp()

	rec := Record{
		ID:             generateRecordID(),
		Content:        content,
		OccurredAt:     now,
		Location:       location,
		Actor:          actor,
		Emotion:        emotion,
		Importance:     s.scoreImportance(ctx, content, emotion, 0),
		LastAccessedAt: now,
		CreatedAt:      now,
	}

	if err := s.index.Add(ctx, rec.document()); err != nil {
		return "", fmt.Errorf("add record: %w", err)
	}

	link := func(ctx context.Context) error {
		s.associate(ctx, rec.ID, rec.Content)
		return nil
	}
	if s.runner != nil {
		s.runner.Dispatch(tasks.Job{Name: "episodic.associate", Run: link})
	} else {
		_ = link(ctx)
	}

	s.bus.Publish(events.New(events.EventEpisodicAdded, map[string]any{
		"id":         rec.ID,
		"importance": rec.Importance,
	}))
	return rec.ID, nil
}

// associate links a record to up to maxAssociations similar prior records
// whose stored importance clears the floor. Best-effort: any failure is
// skipped silently.
func (s *Store) associate(ctx context.Context, id, content string) {
	hits, err := s.index.Query(ctx, content, s.maxAssociations+2, importanceAtLeast(s.associationFloor))
	if err != nil {
		slog.Debug("association query failed", "id", id, "error", err)
		return
	}

	var similar []string
	for _, h := range hits {
		if h.ID == id {
			continue
		}
		similar = append(similar, h.ID)
		if len(similar) == s.maxAssociations {
			break
		}
	}
	if len(similar) == 0 {
		return
	}

	docs, err := s.index.Get(ctx, id)
	if err != nil || len(docs) == 0 {
		slog.Debug("association lookup failed", "id", id, "error", err)
		return
	}

	rec := recordFromDocument(docs[0])
	rec.Associations = similar
	if err := s.index.Update(ctx, id, rec.document().Metadata); err != nil {
		slog.Debug("association update failed", "id", id, "error", err)
	}
}

// Retrieve returns up to maxResults records ranked by decayed importance.
// Every hit is mutated read-through: access count incremented, last access
// stamped, decayed importance persisted back. Concurrent retrievals can
// race on this bookkeeping; it is eventually consistent, not exact.
func (s *Store) Retrieve(ctx context.Context, query string, maxResults int, minImportance float64) ([]Record, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	now := s.now()

	hits, err := s.index.Query(ctx, query, maxResults*2, importanceAtLeast(minImportance))
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	var out []Record
	for _, h := range hits {
		rec := recordFromDocument(h.Document)
		decayed := Decay(rec.Importance, rec.CreatedAt, now, s.decayRate)
		if decayed < minImportance {
			continue
		}

		rec.Importance = decayed
		rec.AccessCount++
		rec.LastAccessedAt = now
		if err := s.index.Update(ctx, rec.ID, rec.document().Metadata); err != nil {
			slog.Warn("retrieval bookkeeping failed", "id", rec.ID, "error", err)
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// Get returns a record by id, without retrieval bookkeeping.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	docs, err := s.index.Get(ctx, id)
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	if len(docs) == 0 {
		return Record{}, fmt.Errorf("record %q not found", id)
	}
	return recordFromDocument(docs[0]), nil
}

// Delete removes records by id.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if err := s.index.Delete(ctx, ids...); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// Consolidate merges each record with its nearest neighbor when their
// similarity clears the threshold. The survivor keeps the boosted maximum
// importance (capped at 1.0) and the summed access count; the loser is
// deleted and its id retired. Running it again after a pass finds no
// still-mergeable pairs: merged ids are gone and self-matches are guarded.
func (s *Store) Consolidate(ctx context.Context, similarityThreshold float64) (int, error) {
	all, err := s.index.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("consolidate: %w", err)
	}
	if len(all) < 2 {
		return 0, nil
	}

	merged := 0
	gone := make(map[string]bool)

	for _, doc := range all {
		if gone[doc.ID] {
			continue
		}

		hits, err := s.index.Query(ctx, doc.Content, 3, nil)
		if err != nil {
			return merged, fmt.Errorf("consolidate query: %w", err)
		}

		var nearest *index.Result
		for i := range hits {
			if hits[i].ID != doc.ID && !gone[hits[i].ID] {
				nearest = &hits[i]
				break
			}
		}
		if nearest == nil || float64(nearest.Similarity) < similarityThreshold {
			continue
		}

		if err := s.merge(ctx, doc.ID, nearest.ID); err != nil {
			slog.Warn("merge failed", "winner", doc.ID, "loser", nearest.ID, "error", err)
			continue
		}
		gone[nearest.ID] = true
		merged++
	}

	if merged > 0 {
		s.bus.Publish(events.New(events.EventEpisodicConsolidated, map[string]any{"merged": merged}))
	}
	return merged, nil
}

// merge folds loser into winner and deletes loser.
func (s *Store) merge(ctx context.Context, winnerID, loserID string) error {
	docs, err := s.index.Get(ctx, winnerID, loserID)
	if err != nil {
		return err
	}
	if len(docs) != 2 {
		return fmt.Errorf("merge: expected 2 records, got %d", len(docs))
	}

	byID := map[string]Record{}
	for _, d := range docs {
		byID[d.ID] = recordFromDocument(d)
	}
	winner, loser := byID[winnerID], byID[loserID]

	winner.Importance = math.Min(1.0, math.Max(winner.Importance, loser.Importance)*consolidationBoost)
	winner.AccessCount += loser.AccessCount

	if err := s.index.Update(ctx, winnerID, winner.document().Metadata); err != nil {
		return err
	}
	return s.index.Delete(ctx, loserID)
}

// Stats summarizes the store: record count, emotion-label histogram, and
// the most-accessed records.
type Stats struct {
	Total        int            `json:"total"`
	Emotions     map[string]int `json:"emotions"`
	MostAccessed []Record       `json:"most_accessed"`
}

// CollectStats walks all records and aggregates store statistics.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	all, err := s.index.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	stats := &Stats{Total: len(all), Emotions: make(map[string]int)}
	records := make([]Record, 0, len(all))
	for _, doc := range all {
		rec := recordFromDocument(doc)
		stats.Emotions[string(rec.Emotion.Label)]++
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].AccessCount > records[j].AccessCount })
	if len(records) > 3 {
		records = records[:3]
	}
	stats.MostAccessed = records
	return stats, nil
}
