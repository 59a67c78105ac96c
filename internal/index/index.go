// Package index defines the semantic index the episodic store is built on:
// persistent (id, text, metadata) documents with nearest-neighbor retrieval.
package index

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the index backend cannot serve the operation.
// There is no fallback retrieval path, so episodic callers propagate it.
var ErrUnavailable = errors.New("semantic index unavailable")

// Document is a stored entry. Metadata values are strings; numeric fields
// are formatted by the caller.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Result is a query hit. Similarity is cosine similarity; distance is
// 1 - Similarity.
type Result struct {
	Document
	Similarity float32
}

// Filter is a metadata predicate applied to query candidates.
type Filter func(meta map[string]string) bool

// Index is the semantic index contract.
type Index interface {
	// Add stores a document, overwriting any existing one with the same id.
	Add(ctx context.Context, doc Document) error
	// Update replaces a document's metadata, leaving content and embedding intact.
	Update(ctx context.Context, id string, meta map[string]string) error
	// Delete removes the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error
	// Get returns the documents for the given ids, skipping unknown ones.
	Get(ctx context.Context, ids ...string) ([]Document, error)
	// All returns every stored document.
	All(ctx context.Context) ([]Document, error)
	// Query returns up to topK documents ranked by similarity to text,
	// restricted to those matching filter (nil matches everything).
	Query(ctx context.Context, text string, topK int, filter Filter) ([]Result, error)
	// Count returns the number of stored documents.
	Count() int
}
