// Package episodic owns long-term memory: importance-scored records with
// exponential decay, associative links, and consolidation of near-duplicates.
package episodic

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-ai/mnemo/internal/conversation"
	"github.com/mnemo-ai/mnemo/internal/index"
)

// Record is a single long-term memory entry.
type Record struct {
	ID             string                 `json:"id"`
	Content        string                 `json:"content"`
	OccurredAt     time.Time              `json:"occurred_at"`
	Location       string                 `json:"location,omitempty"`
	Actor          string                 `json:"actor,omitempty"`
	Emotion        conversation.Sentiment `json:"emotion"`
	Importance     float64                `json:"importance"`
	AccessCount    int                    `json:"access_count"`
	LastAccessedAt time.Time              `json:"last_accessed_at"`
	CreatedAt      time.Time              `json:"created_at"`
	Associations   []string               `json:"associations,omitempty"`
}

// generateRecordID creates a unique record identifier. IDs are never reused:
// deletion via consolidation retires the id permanently.
func generateRecordID() string {
	u := uuid.New().String()
	return "epi_" + strings.ReplaceAll(u, "-", "")
}

// Metadata keys stored in the semantic index.
const (
	metaOccurredAt   = "occurred_at"
	metaLocation     = "location"
	metaActor        = "actor"
	metaEmotionLabel = "emotion_label"
	metaEmotionScore = "emotion_score"
	metaImportance   = "importance"
	metaAccessCount  = "access_count"
	metaLastAccess   = "last_accessed_at"
	metaCreatedAt    = "created_at"
	metaAssociations = "associations"
)

// document converts the record into its index representation. The record's
// content is the indexed text; everything else rides in metadata.
func (r *Record) document() index.Document {
	assoc := ""
	if len(r.Associations) > 0 {
		if data, err := json.Marshal(r.Associations); err == nil {
			assoc = string(data)
		}
	}
	return index.Document{
		ID:      r.ID,
		Content: r.Content,
		Metadata: map[string]string{
			metaOccurredAt:   r.OccurredAt.Format(time.RFC3339Nano),
			metaLocation:     r.Location,
			metaActor:        r.Actor,
			metaEmotionLabel: string(r.Emotion.Label),
			metaEmotionScore: formatFloat(r.Emotion.Score),
			metaImportance:   formatFloat(r.Importance),
			metaAccessCount:  strconv.Itoa(r.AccessCount),
			metaLastAccess:   r.LastAccessedAt.Format(time.RFC3339Nano),
			metaCreatedAt:    r.CreatedAt.Format(time.RFC3339Nano),
			metaAssociations: assoc,
		},
	}
}

// recordFromDocument rebuilds a Record from its index representation.
// Malformed fields fall back to zero values rather than failing retrieval.
func recordFromDocument(doc index.Document) Record {
	meta := doc.Metadata
	r := Record{
		ID:       doc.ID,
		Content:  doc.Content,
		Location: meta[metaLocation],
		Actor:    meta[metaActor],
		Emotion: conversation.Sentiment{
			Label: conversation.SentimentLabel(meta[metaEmotionLabel]),
			Score: parseFloat(meta[metaEmotionScore]),
		}.Clamp(),
		Importance:  parseFloat(meta[metaImportance]),
		AccessCount: parseInt(meta[metaAccessCount]),
	}
	r.OccurredAt = parseTime(meta[metaOccurredAt])
	r.LastAccessedAt = parseTime(meta[metaLastAccess])
	r.CreatedAt = parseTime(meta[metaCreatedAt])
	if assoc := meta[metaAssociations]; assoc != "" {
		_ = json.Unmarshal([]byte(assoc), &r.Associations)
	}
	return r
}

// importanceAtLeast filters index candidates by their stored importance.
func importanceAtLeast(min float64) index.Filter {
	return func(meta map[string]string) bool {
		return parseFloat(meta[metaImportance]) >= min
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
