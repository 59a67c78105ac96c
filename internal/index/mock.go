package index

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Mock is an in-memory Index with token-overlap similarity. It exists for
// tests and for running without an embedding backend; results are
// deterministic for a fixed document set.
type Mock struct {
	mu   sync.RWMutex
	docs map[string]Document

	// FailAll makes every operation return ErrUnavailable, for testing
	// the no-fallback error path.
	FailAll bool
}

// NewMock creates an empty Mock index.
func NewMock() *Mock {
	return &Mock{docs: make(map[string]Document)}
}

func (m *Mock) Add(_ context.Context, doc Document) error {
	if m.FailAll {
		return ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *Mock) Update(_ context.Context, id string, meta map[string]string) error {
	if m.FailAll {
		return ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrUnavailable
	}
	doc.Metadata = meta
	m.docs[id] = doc
	return nil
}

func (m *Mock) Delete(_ context.Context, ids ...string) error {
	if m.FailAll {
		return ErrUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	return nil
}

func (m *Mock) Get(_ context.Context, ids ...string) ([]Document, error) {
	if m.FailAll {
		return nil, ErrUnavailable
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *Mock) All(_ context.Context) ([]Document, error) {
	if m.FailAll {
		return nil, ErrUnavailable
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Mock) Query(_ context.Context, text string, topK int, filter Filter) ([]Result, error) {
	if m.FailAll {
		return nil, ErrUnavailable
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := tokenSet(text)
	var out []Result
	for _, doc := range m.docs {
		if filter != nil && !filter(doc.Metadata) {
			continue
		}
		out = append(out, Result{Document: doc, Similarity: overlap(query, tokenSet(doc.Content))})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if topK >= 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *Mock) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) > 1 {
			set[w] = true
		}
	}
	return set
}

// overlap returns |a∩b| / |a∪b| as a similarity proxy.
func overlap(a, b map[string]bool) float32 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float32(inter) / float32(union)
}
