package models

import (
	"fmt"
	"strings"
)

// errClasses maps raw provider failures onto short actionable labels.
// Ordered: auth before generic 404s, connectivity last since "timeout"
// shows up inside other messages too.
var errClasses = []struct {
	label   string
	markers []string
}{
	{"authentication failed", []string{"401", "403", "unauthorized", "invalid api key", "api key", "forbidden"}},
	{"rate limited", []string{"429", "rate limit", "quota", "too many requests"}},
	{"context too long", []string{"context length", "too many tokens", "max tokens", "token limit"}},
	{"model not found", []string{"model not found", "404", "not found"}},
	{"connection error", []string{"connection", "eof", "timeout", "dial", "refused", "no such host"}},
}

// HandleError wraps anthropic, openai and ollama SDK errors with a label
// describing what went wrong. Unrecognized errors pass through unchanged.
func HandleError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, c := range errClasses {
		for _, m := range c.markers {
			if strings.Contains(msg, m) {
				return fmt.Errorf("%s: %w", c.label, err)
			}
		}
	}
	return err
}
