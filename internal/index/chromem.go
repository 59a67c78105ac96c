package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	chromem "github.com/philippgille/chromem-go"

	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
)

const collectionName = "episodic_memories"

// queryOverfetch compensates for client-side filtering: chromem's native
// where clause is exact-match only, so filtered queries fetch extra
// candidates and trim after the predicate.
const queryOverfetch = 4

// Chromem implements Index on a persistent chromem-go collection. The
// collection owns vectors and similarity search; a JSON catalog alongside
// it is the enumerable source of truth for Get/All/Update.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu      sync.RWMutex
	catalog map[string]Document
	docs    *docstore.Store
}

// NewChromem opens (or creates) a persistent index in dir. The embedder is
// bridged from eino's [][]float64 to chromem-go's []float32.
func NewChromem(ctx context.Context, dir string, embedder embedding.Embedder) (*Chromem, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "vectors"), false)
	if err != nil {
		return nil, fmt.Errorf("%w: open vector store: %v", ErrUnavailable, err)
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, bridgeEmbedder(ctx, embedder))
	if err != nil {
		return nil, fmt.Errorf("%w: get or create collection: %v", ErrUnavailable, err)
	}

	c := &Chromem{
		db:         db,
		collection: col,
		catalog:    make(map[string]Document),
		docs:       docstore.New(dir),
	}
	if _, err := c.docs.Load("catalog", &c.catalog); err != nil {
		return nil, fmt.Errorf("%w: load catalog: %v", ErrUnavailable, err)
	}
	return c, nil
}

func (c *Chromem) Add(ctx context.Context, doc Document) error {
	// chromem's Add overwrites an existing id.
	err := c.collection.Add(ctx,
		[]string{doc.ID}, nil, []map[string]string{doc.Metadata}, []string{doc.Content})
	if err != nil {
		return fmt.Errorf("%w: add %s: %v", ErrUnavailable, doc.ID, err)
	}

	c.mu.Lock()
	c.catalog[doc.ID] = doc
	err = c.saveCatalogLocked()
	c.mu.Unlock()
	return err
}

func (c *Chromem) Update(ctx context.Context, id string, meta map[string]string) error {
	c.mu.Lock()
	doc, ok := c.catalog[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("index: document %q not found", id)
	}
	doc.Metadata = meta
	c.catalog[id] = doc
	err := c.saveCatalogLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	// Re-add to refresh the collection's copy of the metadata. The content
	// is unchanged, so the embedding stays equivalent.
	if err := c.collection.Add(ctx,
		[]string{id}, nil, []map[string]string{meta}, []string{doc.Content}); err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

func (c *Chromem) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	for _, id := range ids {
		delete(c.catalog, id)
	}
	err := c.saveCatalogLocked()
	c.mu.Unlock()
	return err
}

func (c *Chromem) Get(_ context.Context, ids ...string) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Document
	for _, id := range ids {
		if doc, ok := c.catalog[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (c *Chromem) All(_ context.Context) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Document, 0, len(c.catalog))
	for _, doc := range c.catalog {
		out = append(out, doc)
	}
	return out, nil
}

func (c *Chromem) Query(ctx context.Context, text string, topK int, filter Filter) ([]Result, error) {
	count := c.collection.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}

	fetch := topK
	if filter != nil {
		fetch = topK * queryOverfetch
	}
	if fetch > count {
		fetch = count
	}

	hits, err := c.collection.Query(ctx, text, fetch, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	var out []Result
	for _, h := range hits {
		if filter != nil && !filter(h.Metadata) {
			continue
		}
		out = append(out, Result{
			Document:   Document{ID: h.ID, Content: h.Content, Metadata: h.Metadata},
			Similarity: h.Similarity,
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (c *Chromem) Count() int {
	return c.collection.Count()
}

// saveCatalogLocked persists the catalog; caller holds c.mu.
func (c *Chromem) saveCatalogLocked() error {
	if err := c.docs.Save("catalog", c.catalog); err != nil {
		return fmt.Errorf("%w: save catalog: %v", ErrUnavailable, err)
	}
	return nil
}

// bridgeEmbedder converts an eino Embedder ([][]float64) to a chromem-go
// EmbeddingFunc ([]float32).
func bridgeEmbedder(ctx context.Context, embedder embedding.Embedder) chromem.EmbeddingFunc {
	return func(embedCtx context.Context, text string) ([]float32, error) {
		if embedCtx == context.Background() {
			embedCtx = ctx
		}
		vectors, err := embedder.EmbedStrings(embedCtx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("embed text: %w", err)
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("embed text: empty result")
		}

		f64 := vectors[0]
		f32 := make([]float32, len(f64))
		for i, v := range f64 {
			f32[i] = float32(v)
		}
		return f32, nil
	}
}
