// Package models creates and caches the chat models backing the inference
// oracle.
package models

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/mnemo-ai/mnemo/internal/config"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultMaxTokens     = 4096
)

// CreateModel creates a chat model from a provider config.
func CreateModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	switch strings.ToLower(cfg.Driver) {
	case "anthropic":
		return newClaude(ctx, cfg)
	case "openai":
		return newOpenAI(ctx, cfg)
	case "ollama":
		return newOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
}

func newClaude(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	apiKey, err := resolveAPIKey(cfg, "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	mc := &einoclaude.Config{
		APIKey:    apiKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		mc.BaseURL = &baseURL
	}
	return einoclaude.NewChatModel(ctx, mc)
}

func newOpenAI(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	apiKey, err := resolveAPIKey(cfg, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	mc := &einoopenai.ChatModelConfig{
		APIKey: apiKey,
		Model:  cfg.Model,
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxCompletionTokens = &maxTokens
	}
	if cfg.Timeout.Duration() > 0 {
		mc.Timeout = cfg.Timeout.Duration()
	} else {
		mc.Timeout = defaultTimeout
	}
	return einoopenai.NewChatModel(ctx, mc)
}

func newOllama(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	mc := &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
	}
	if cfg.Timeout.Duration() > 0 {
		mc.Timeout = cfg.Timeout.Duration()
	} else {
		mc.Timeout = 300 * time.Second
	}
	if cfg.MaxTokens > 0 {
		mc.Options = &einoollama.Options{NumPredict: cfg.MaxTokens}
	}
	return einoollama.NewChatModel(ctx, mc)
}

// resolveAPIKey returns the configured key, falling back to the provider's
// conventional environment variable. ${VAR} values resolve through the env.
func resolveAPIKey(cfg config.ProviderConfig, envVar string) (string, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		key = os.Getenv(key[2 : len(key)-1])
	}
	if key == "" {
		key = os.Getenv(envVar)
	}
	if key == "" {
		return "", fmt.Errorf("%s: API key not configured (set api_key or %s)", cfg.Driver, envVar)
	}
	return key, nil
}
