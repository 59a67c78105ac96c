package config

import "time"

// Config is the root configuration for mnemo.
type Config struct {
	Models      ModelsConfig      `json:"models"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	Memory      MemoryConfig      `json:"memory"`
	Tasks       TasksConfig       `json:"tasks"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string   `json:"driver"` // "anthropic", "openai", "ollama"
	Model     string   `json:"model"`
	BaseURL   string   `json:"base_url,omitempty"`
	APIKey    string   `json:"api_key,omitempty"`
	MaxTokens int      `json:"max_tokens,omitempty"`
	Timeout   Duration `json:"timeout,omitempty"`
}

// EmbeddingConfig configures the embedding backend for the semantic index.
type EmbeddingConfig struct {
	Driver  string `json:"driver"` // "openai", "ollama"
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Dims    int    `json:"dims,omitempty"`
}

// MemoryConfig tunes the memory pipelines.
type MemoryConfig struct {
	Dir      string         `json:"dir,omitempty"` // data root (default: $MNEMO_PATH/memory)
	Episodic EpisodicConfig `json:"episodic"`
	Working  WorkingConfig  `json:"working"`
	Learning LearningConfig `json:"learning"`
	Profile  ProfileConfig  `json:"profile"`
}

// EpisodicConfig tunes the episodic store.
type EpisodicConfig struct {
	DecayRate         float64 `json:"decay_rate,omitempty"`          // per-day multiplier (default 0.95)
	AssociationFloor  float64 `json:"association_floor,omitempty"`   // min importance for linking (default 0.3)
	MaxAssociations   int     `json:"max_associations,omitempty"`    // default 3
	DefaultImportance float64 `json:"default_importance,omitempty"`  // oracle-failure fallback (default 0.5)
}

// WorkingConfig tunes the working-memory orchestrator.
type WorkingConfig struct {
	BufferSize       int     `json:"buffer_size,omitempty"`       // turns kept (default 10)
	TriggerThreshold int     `json:"trigger_threshold,omitempty"` // turns before cycles fire (default 5)
	ExtractThreshold float64 `json:"extract_threshold,omitempty"` // importance gate (default 0.5)
}

// LearningConfig tunes the continuous-learning extractor.
type LearningConfig struct {
	BufferSize          int     `json:"buffer_size,omitempty"`          // turns kept (default 10)
	TriggerThreshold    int     `json:"trigger_threshold,omitempty"`    // turns before extraction (default 3)
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"` // teaching gate (default 0.7)
}

// ProfileConfig tunes the profile analyzer.
type ProfileConfig struct {
	MessageThreshold int      `json:"message_threshold,omitempty"` // default 100
	AnalysisInterval Duration `json:"analysis_interval,omitempty"` // default 1h
	LogCap           int      `json:"log_cap,omitempty"`           // default 500
}

// TasksConfig sizes the background runner.
type TasksConfig struct {
	QueueSize int `json:"queue_size,omitempty"` // default 64
	Workers   int `json:"workers,omitempty"`    // default 4
}

// MaintenanceConfig schedules periodic episodic consolidation.
type MaintenanceConfig struct {
	ConsolidationCron   string  `json:"consolidation_cron,omitempty"`   // default "0 3 * * *"
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"` // default 0.85
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
