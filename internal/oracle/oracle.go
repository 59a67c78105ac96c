// Package oracle turns prompts into schema-conforming structured results
// via an LLM. Every memory pipeline defines its own output struct and owns
// its prompt; the oracle only handles the call and the JSON decoding.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrNoResult indicates the oracle call failed or produced no parseable
// structured output. Callers degrade gracefully: they skip the write or
// fall back to a documented default.
var ErrNoResult = errors.New("oracle: no structured result")

// Oracle produces a structured result matching the shape of out.
type Oracle interface {
	Invoke(ctx context.Context, systemPrompt, userPayload string, out any) error
}

// ChatOracle implements Oracle over an eino chat model. The model is asked
// to respond with a single JSON object; the response is decoded after
// stripping markdown fences.
type ChatOracle struct {
	model model.BaseChatModel
}

// NewChatOracle wraps a chat model as an Oracle.
func NewChatOracle(m model.BaseChatModel) *ChatOracle {
	return &ChatOracle{model: m}
}

// Invoke performs a single non-streaming call and decodes the response into out.
func (o *ChatOracle) Invoke(ctx context.Context, systemPrompt, userPayload string, out any) error {
	msgs := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPayload},
	}

	resp, err := o.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("%w: generate: %v", ErrNoResult, err)
	}

	if err := Decode(resp.Content, out); err != nil {
		return err
	}
	return nil
}

// Decode extracts a JSON object from a model response and unmarshals it
// into out. Handles raw JSON, markdown code fences, and surrounding prose.
func Decode(content string, out any) error {
	content = stripFences(strings.TrimSpace(content))

	// Models occasionally wrap the object in prose; cut to the outermost braces.
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	return nil
}

// stripFences removes a surrounding ```...``` block if present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
