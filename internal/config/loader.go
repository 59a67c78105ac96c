package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults. A missing file yields
// a pure-defaults Config.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		expanded := expandEnvTemplates(string(data))
		if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with the documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Memory.Dir == "" {
		cfg.Memory.Dir = filepath.Join(MnemoPath(), "memory")
	}

	epi := &cfg.Memory.Episodic
	if epi.DecayRate == 0 {
		epi.DecayRate = 0.95
	}
	if epi.AssociationFloor == 0 {
		epi.AssociationFloor = 0.3
	}
	if epi.MaxAssociations == 0 {
		epi.MaxAssociations = 3
	}
	if epi.DefaultImportance == 0 {
		epi.DefaultImportance = 0.5
	}

	w := &cfg.Memory.Working
	if w.BufferSize == 0 {
		w.BufferSize = 10
	}
	if w.TriggerThreshold == 0 {
		w.TriggerThreshold = 5
	}
	if w.ExtractThreshold == 0 {
		w.ExtractThreshold = 0.5
	}

	l := &cfg.Memory.Learning
	if l.BufferSize == 0 {
		l.BufferSize = 10
	}
	if l.TriggerThreshold == 0 {
		l.TriggerThreshold = 3
	}
	if l.ConfidenceThreshold == 0 {
		l.ConfidenceThreshold = 0.7
	}

	p := &cfg.Memory.Profile
	if p.MessageThreshold == 0 {
		p.MessageThreshold = 100
	}
	if p.AnalysisInterval == 0 {
		p.AnalysisInterval = Duration(time.Hour)
	}
	if p.LogCap == 0 {
		p.LogCap = 500
	}

	if cfg.Tasks.QueueSize == 0 {
		cfg.Tasks.QueueSize = 64
	}
	if cfg.Tasks.Workers == 0 {
		cfg.Tasks.Workers = 4
	}

	m := &cfg.Maintenance
	if m.ConsolidationCron == "" {
		m.ConsolidationCron = "0 3 * * *"
	}
	if m.SimilarityThreshold == 0 {
		m.SimilarityThreshold = 0.85
	}
}
