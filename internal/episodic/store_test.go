package episodic

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/index"
)

type stubOracle struct {
	payload string
	err     error
}

func (s *stubOracle) Invoke(_ context.Context, _, _ string, out any) error {
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.payload), out)
}

func newTestStore(idx index.Index, o *stubOracle) *Store {
	return NewStore(StoreConfig{
		Index:  idx,
		Oracle: o,
		Tuning: config.EpisodicConfig{},
	})
}

func TestAdd_OracleFailureUsesDefaultImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(index.NewMock(), &stubOracle{err: errors.New("model down")})

	id, err := s.Add(ctx, "met sam at the conference", "", "", conversation.Neutral())
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Importance != 0.5 {
		t.Errorf("expected default importance 0.5, got %f", rec.Importance)
	}
}

func TestAdd_IndexUnavailable(t *testing.T) {
	idx := index.NewMock()
	idx.FailAll = true
	s := newTestStore(idx, &stubOracle{payload: `{"importance": 0.8}`})

	_, err := s.Add(context.Background(), "anything", "", "", conversation.Neutral())
	if !errors.Is(err, index.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRetrieve_ImportanceFloor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(index.NewMock(), &stubOracle{payload: `{"importance": 0.8}`})

	if _, err := s.Add(ctx, "signed the apartment lease", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.Retrieve(ctx, "apartment lease", 5, 0.9)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results below the floor, got %d", len(got))
	}

	got, err = s.Retrieve(ctx, "apartment lease", 5, 0.5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].AccessCount != 1 {
		t.Errorf("expected access count bumped to 1, got %d", got[0].AccessCount)
	}
}

func TestRetrieve_AccessCountPersists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(index.NewMock(), &stubOracle{payload: `{"importance": 0.8}`})

	if _, err := s.Add(ctx, "learned to ride a motorcycle", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Retrieve(ctx, "motorcycle", 5, 0); err != nil {
			t.Fatalf("retrieve %d: %v", i, err)
		}
	}

	got, err := s.Retrieve(ctx, "motorcycle", 5, 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got[0].AccessCount != 4 {
		t.Errorf("expected access count 4, got %d", got[0].AccessCount)
	}
}

func TestAdd_LinksAssociations(t *testing.T) {
	ctx := context.Background()
	oracle := &stubOracle{payload: `{"importance": 0.8}`}
	s := newTestStore(index.NewMock(), oracle)

	first, err := s.Add(ctx, "booked flights to tokyo for april", "", "", conversation.Neutral())
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := s.Add(ctx, "booked a hotel in tokyo for april", "", "", conversation.Neutral())
	if err != nil {
		t.Fatalf("add second: %v", err)
	}

	rec, err := s.Get(ctx, second)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Associations) != 1 || rec.Associations[0] != first {
		t.Errorf("expected association to %s, got %v", first, rec.Associations)
	}
}

func TestConsolidate_MergesNearDuplicates(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMock()
	oracle := &stubOracle{payload: `{"importance": 0.6}`}
	s := newTestStore(idx, oracle)

	if _, err := s.Add(ctx, "visited the natural history museum downtown", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}
	oracle.payload = `{"importance": 0.8}`
	if _, err := s.Add(ctx, "visited the natural history museum downtown", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Add(ctx, "ran out of coffee filters this morning", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Touch every record once so the merge has access counts to sum.
	if _, err := s.Retrieve(ctx, "natural history museum", 5, 0); err != nil {
		t.Fatalf("warm retrieve: %v", err)
	}

	merged, err := s.Consolidate(ctx, 0.9)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if merged != 1 {
		t.Fatalf("expected 1 merge, got %d", merged)
	}
	if idx.Count() != 2 {
		t.Errorf("expected 2 records after merge, got %d", idx.Count())
	}

	survivors, err := s.Retrieve(ctx, "natural history museum", 5, 0.85)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(survivors) != 1 {
		t.Fatalf("expected 1 surviving duplicate, got %d", len(survivors))
	}
	expected := math.Min(1.0, 0.8*1.1)
	if math.Abs(survivors[0].Importance-expected) > 1e-6 {
		t.Errorf("expected boosted importance %f, got %f", expected, survivors[0].Importance)
	}
	// Warm retrieve counted each duplicate once; the merge sums both, and
	// this retrieve adds one more.
	if survivors[0].AccessCount != 3 {
		t.Errorf("expected merged access count 3, got %d", survivors[0].AccessCount)
	}
}

func TestConsolidate_ThresholdBlocksMerge(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMock()
	s := newTestStore(idx, &stubOracle{payload: `{"importance": 0.7}`})

	if _, err := s.Add(ctx, "watched a documentary about deep sea fish", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Add(ctx, "watched the sunset from the pier", "", "", conversation.Neutral()); err != nil {
		t.Fatalf("add: %v", err)
	}

	merged, err := s.Consolidate(ctx, 0.9)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if merged != 0 {
		t.Errorf("expected no merges below similarity threshold, got %d", merged)
	}
	if idx.Count() != 2 {
		t.Errorf("expected both records kept, got %d", idx.Count())
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMock()
	s := newTestStore(idx, &stubOracle{payload: `{"importance": 0.7}`})

	id, err := s.Add(ctx, "temporary note", "", "", conversation.Neutral())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("expected empty index, got %d", idx.Count())
	}
}
