package learning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/oracle"
	"github.com/mnemo-ai/mnemo/internal/tasks"
)

// Learning types the oracle may classify.
const (
	TypeFact       = "fact"
	TypeProcedure  = "procedure"
	TypePreference = "preference"
	TypeNone       = "none"
)

const extractWindow = 5

const implicitSystemPrompt = `Extract teachable patterns from conversation. Identify if the user is teaching you something (facts, procedures, preferences).
Respond with a JSON object: {"is_teaching": bool, "learning_type": "fact"|"procedure"|"preference"|"none", "name": "...", "content": "...", "steps": ["..."], "confidence": <number 0-1>}
Only output the JSON, no other text.`

const explicitSystemPrompt = `The user is explicitly teaching you. Extract the learning.
Respond with a JSON object: {"name": "...", "type": "fact"|"procedure"|"preference", "steps": ["..."], "description": "..."}
Only output the JSON, no other text.`

// classification is the oracle schema for implicit extraction.
type classification struct {
	IsTeaching   bool     `json:"is_teaching"`
	LearningType string   `json:"learning_type"`
	Name         string   `json:"name"`
	Content      string   `json:"content"`
	Steps        []string `json:"steps"`
	Confidence   float64  `json:"confidence"`
}

// parsedTeaching is the oracle schema for explicit teaching.
type parsedTeaching struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Steps       []string `json:"steps"`
	Description string   `json:"description"`
}

// TeachingResult reports the outcome of an explicit teaching extraction.
// Procedures are taught directly; facts and preferences come back with
// StoreAsEpisodic set; writing them is the caller's responsibility.
type TeachingResult struct {
	Type            string
	ProcedureID     string
	Description     string
	StoreAsEpisodic bool
}

// Extractor mines the conversation stream for teachable procedures. It
// keeps its own rolling buffer, independent of working memory's.
type Extractor struct {
	oracle  oracle.Oracle
	catalog *Catalog
	runner  *tasks.Runner

	mu     sync.Mutex
	buffer []conversation.Turn

	bufferSize          int
	triggerThreshold    int
	confidenceThreshold float64
}

// NewExtractor creates a continuous-learning extractor.
func NewExtractor(o oracle.Oracle, catalog *Catalog, runner *tasks.Runner, cfg config.LearningConfig) *Extractor {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 10
	}
	if cfg.TriggerThreshold == 0 {
		cfg.TriggerThreshold = 3
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.7
	}
	return &Extractor{
		oracle:              o,
		catalog:             catalog,
		runner:              runner,
		bufferSize:          cfg.BufferSize,
		triggerThreshold:    cfg.TriggerThreshold,
		confidenceThreshold: cfg.ConfidenceThreshold,
	}
}

// Record appends a turn to the buffer and, once enough turns have
// accumulated, dispatches a background extraction over the recent window.
// Always returns immediately.
func (e *Extractor) Record(userText, agentText string) {
	e.mu.Lock()
	e.buffer = append(e.buffer, conversation.NewTurn(userText, agentText, conversation.Neutral()))
	if len(e.buffer) > e.bufferSize {
		e.buffer = e.buffer[len(e.buffer)-e.bufferSize:]
	}
	trigger := len(e.buffer) >= e.triggerThreshold
	window := append([]conversation.Turn(nil), conversation.Tail(e.buffer, extractWindow)...)
	e.mu.Unlock()

	if !trigger {
		return
	}
	e.runner.Dispatch(tasks.Job{
		Name: "learning.extract",
		Run: func(ctx context.Context) error {
			return e.extract(ctx, window)
		},
	})
}

// extract classifies the window and teaches a procedure when the oracle is
// confident the user was teaching one. Everything else is dropped: low
// confidence, non-procedure types, and empty step lists all skip the write.
func (e *Extractor) extract(ctx context.Context, window []conversation.Turn) error {
	var result classification
	if err := e.oracle.Invoke(ctx, implicitSystemPrompt, conversation.Transcript(window, false), &result); err != nil {
		slog.Debug("implicit extraction produced no result", "error", err)
		return nil
	}

	if !result.IsTeaching || result.Confidence < e.confidenceThreshold {
		return nil
	}
	if result.LearningType != TypeProcedure || len(result.Steps) == 0 {
		return nil
	}

	name := result.Name
	if strings.TrimSpace(name) == "" {
		name = "learned_procedure"
	}

	_, err := e.catalog.Teach(name, result.Steps, result.Content, []string{"continuous_learning", TypeProcedure})
	if err != nil {
		return fmt.Errorf("teach extracted procedure: %w", err)
	}
	slog.Info("learned procedure from conversation", "name", name, "confidence", result.Confidence)
	return nil
}

// ExtractExplicit parses a single teaching message. No buffering: the
// message alone is the input. Procedures are taught immediately; for
// facts and preferences the caller stores the episodic record.
func (e *Extractor) ExtractExplicit(ctx context.Context, message string) (TeachingResult, error) {
	var parsed parsedTeaching
	if err := e.oracle.Invoke(ctx, explicitSystemPrompt, message, &parsed); err != nil {
		return TeachingResult{}, fmt.Errorf("parse teaching: %w", err)
	}
	if strings.TrimSpace(parsed.Name) == "" || parsed.Type == "" {
		return TeachingResult{}, fmt.Errorf("parse teaching: %w", oracle.ErrNoResult)
	}

	if parsed.Type != TypeProcedure {
		return TeachingResult{
			Type:            parsed.Type,
			Description:     parsed.Description,
			StoreAsEpisodic: true,
		}, nil
	}

	steps := parsed.Steps
	if len(steps) == 0 {
		// A procedure with no extracted steps degrades to a single step
		// holding the description.
		steps = []string{parsed.Description}
	}

	proc, err := e.catalog.Teach(parsed.Name, steps, parsed.Description, []string{"explicit_teaching"})
	if err != nil {
		return TeachingResult{}, err
	}
	return TeachingResult{Type: TypeProcedure, ProcedureID: proc.ID, Description: parsed.Description}, nil
}
