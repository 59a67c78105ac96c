package oracle

import (
	"errors"
	"testing"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestDecode_RawJSON(t *testing.T) {
	var p payload
	if err := Decode(`{"name": "x", "score": 0.7}`, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "x" || p.Score != 0.7 {
		t.Errorf("unexpected result: %+v", p)
	}
}

func TestDecode_MarkdownFence(t *testing.T) {
	content := "```json\n{\"name\": \"fenced\", \"score\": 1}\n```"
	var p payload
	if err := Decode(content, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "fenced" {
		t.Errorf("expected fenced, got %q", p.Name)
	}
}

func TestDecode_SurroundingProse(t *testing.T) {
	content := `Here is the result you asked for:
{"name": "prose", "score": 0.2}
Let me know if you need anything else.`
	var p payload
	if err := Decode(content, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "prose" {
		t.Errorf("expected prose, got %q", p.Name)
	}
}

func TestDecode_NoJSON(t *testing.T) {
	var p payload
	err := Decode("I cannot answer that.", &p)
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}
