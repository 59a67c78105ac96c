// Package learning maintains the procedure catalog ("teachings") and the
// extraction paths that feed it: implicit mining of the conversation
// stream and explicit "teach me" parsing.
package learning

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mnemo-ai/mnemo/internal/events"
	"github.com/mnemo-ai/mnemo/internal/storage/docstore"
)

// ErrNotFound indicates a procedure lookup miss. It is a structured
// result, never control flow.
var ErrNotFound = errors.New("learning: procedure not found")

const catalogKey = "learnings"

// Procedure is a named, ordered step sequence the agent can execute.
type Procedure struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Steps          []string   `json:"steps"`
	Tags           []string   `json:"tags,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExecutionCount int        `json:"execution_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
}

// DeriveID normalizes a procedure name into its catalog id. Case and
// surrounding whitespace are insignificant, so "Deploy" and "deploy"
// address the same entry.
func DeriveID(name string) string {
	return "learn-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// Catalog is the durable procedure store. All state lives in memory and is
// persisted wholesale after every mutation; a failed save is logged and
// surfaced but never loses the in-memory state.
type Catalog struct {
	mu         sync.RWMutex
	procedures map[string]Procedure
	docs       *docstore.Store
	bus        *events.Bus
}

// NewCatalog creates a catalog, loading any previously persisted entries.
func NewCatalog(docs *docstore.Store, bus *events.Bus) *Catalog {
	c := &Catalog{
		procedures: make(map[string]Procedure),
		docs:       docs,
		bus:        bus,
	}
	if _, err := docs.Load(catalogKey, &c.procedures); err != nil {
		slog.Warn("failed to load procedure catalog", "error", err)
	}
	return c
}

// Teach creates or overwrites the procedure with the given name. Steps must
// be non-empty; re-teaching the same (case-insensitive) name replaces the
// prior entry wholesale.
func (c *Catalog) Teach(name string, steps []string, description string, tags []string) (Procedure, error) {
	if strings.TrimSpace(name) == "" {
		return Procedure{}, fmt.Errorf("teach: name is required")
	}
	if len(steps) == 0 {
		return Procedure{}, fmt.Errorf("teach %q: steps must be non-empty", name)
	}

	now := time.Now()
	proc := Procedure{
		ID:          DeriveID(name),
		Name:        name,
		Description: description,
		Steps:       steps,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.mu.Lock()
	c.procedures[proc.ID] = proc
	err := c.saveLocked()
	c.mu.Unlock()

	c.bus.Publish(events.New(events.EventProcedureTaught, map[string]any{
		"id":    proc.ID,
		"name":  proc.Name,
		"steps": len(proc.Steps),
	}))
	return proc, err
}

// Get finds a procedure by id or name. Exact id match wins, then the id
// derived from the name, then a case-insensitive substring match on names.
func (c *Catalog) Get(nameOrID string) (Procedure, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findLocked(nameOrID)
}

func (c *Catalog) findLocked(nameOrID string) (Procedure, error) {
	if proc, ok := c.procedures[nameOrID]; ok {
		return proc, nil
	}
	if proc, ok := c.procedures[DeriveID(nameOrID)]; ok {
		return proc, nil
	}

	needle := strings.ToLower(nameOrID)
	for _, proc := range c.procedures {
		if strings.Contains(strings.ToLower(proc.Name), needle) {
			return proc, nil
		}
	}
	return Procedure{}, ErrNotFound
}

// Execute marks a procedure as executed (count + timestamp) and returns it.
func (c *Catalog) Execute(nameOrID string) (Procedure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proc, err := c.findLocked(nameOrID)
	if err != nil {
		return Procedure{}, err
	}

	now := time.Now()
	proc.ExecutionCount++
	proc.LastExecutedAt = &now
	c.procedures[proc.ID] = proc

	if err := c.saveLocked(); err != nil {
		return proc, err
	}
	return proc, nil
}

// Update applies a partial update to a procedure by id. Nil fields are
// left untouched; a nil Description or Tags pointer means "keep".
type Update struct {
	Name        *string
	Description *string
	Steps       []string
	Tags        []string
}

// Apply mutates the procedure identified by id with the non-nil fields of u.
func (c *Catalog) Apply(id string, u Update) (Procedure, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proc, ok := c.procedures[id]
	if !ok {
		return Procedure{}, ErrNotFound
	}

	if u.Name != nil {
		proc.Name = *u.Name
	}
	if u.Description != nil {
		proc.Description = *u.Description
	}
	if len(u.Steps) > 0 {
		proc.Steps = u.Steps
	}
	if u.Tags != nil {
		proc.Tags = u.Tags
	}
	proc.UpdatedAt = time.Now()
	c.procedures[id] = proc

	if err := c.saveLocked(); err != nil {
		return proc, err
	}
	return proc, nil
}

// Delete removes a procedure by id or name.
func (c *Catalog) Delete(nameOrID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	proc, err := c.findLocked(nameOrID)
	if err != nil {
		return err
	}
	delete(c.procedures, proc.ID)
	return c.saveLocked()
}

// List returns procedures (optionally restricted to a tag), most executed
// first.
func (c *Catalog) List(tag string) []Procedure {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Procedure
	for _, proc := range c.procedures {
		if tag != "" && !hasTag(proc, tag) {
			continue
		}
		out = append(out, proc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutionCount > out[j].ExecutionCount })
	return out
}

// Search returns procedures whose name, description, or any step contains
// the query (case-insensitive).
func (c *Catalog) Search(query string) []Procedure {
	needle := strings.ToLower(query)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Procedure
	for _, proc := range c.procedures {
		if matchesQuery(proc, needle) {
			out = append(out, proc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matchesQuery(proc Procedure, needle string) bool {
	if strings.Contains(strings.ToLower(proc.Name), needle) ||
		strings.Contains(strings.ToLower(proc.Description), needle) {
		return true
	}
	for _, step := range proc.Steps {
		if strings.Contains(strings.ToLower(step), needle) {
			return true
		}
	}
	return false
}

func hasTag(proc Procedure, tag string) bool {
	for _, t := range proc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CatalogStats summarizes catalog usage.
type CatalogStats struct {
	Total    int            `json:"total"`
	MostUsed []Procedure    `json:"most_used"`
	Tags     map[string]int `json:"tags"`
}

// Stats aggregates catalog statistics.
func (c *Catalog) Stats() CatalogStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CatalogStats{Total: len(c.procedures), Tags: make(map[string]int)}
	all := make([]Procedure, 0, len(c.procedures))
	for _, proc := range c.procedures {
		all = append(all, proc)
		for _, tag := range proc.Tags {
			stats.Tags[tag]++
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ExecutionCount > all[j].ExecutionCount })
	if len(all) > 5 {
		all = all[:5]
	}
	stats.MostUsed = all
	return stats
}

// saveLocked persists the catalog; caller holds c.mu. In-memory state is
// kept on failure so the process can operate until the next save succeeds.
func (c *Catalog) saveLocked() error {
	if err := c.docs.Save(catalogKey, c.procedures); err != nil {
		slog.Error("failed to persist procedure catalog", "error", err)
		return fmt.Errorf("persist catalog: %w", err)
	}
	return nil
}
