package memory

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// maintenance runs scheduled episodic consolidation sweeps.
type maintenance struct {
	cron      *cron.Cron
	threshold float64
}

func newMaintenance(m *Manager, cfg config.MaintenanceConfig) *maintenance {
	mt := &maintenance{threshold: cfg.SimilarityThreshold}
	if mt.threshold == 0 {
		mt.threshold = 0.85
	}

	spec := cfg.ConsolidationCron
	if spec == "" {
		spec = "0 3 * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		merged, err := m.episodic.Consolidate(context.Background(), mt.threshold)
		if err != nil {
			slog.Warn("scheduled consolidation failed", "error", err)
			return
		}
		slog.Info("scheduled consolidation finished", "merged", merged)
	})
	if err != nil {
		slog.Warn("invalid consolidation schedule, sweeps disabled", "spec", spec, "error", err)
		return mt
	}
	mt.cron = c
	return mt
}

// start begins the schedule. No-op when the schedule failed to parse.
func (mt *maintenance) start() {
	if mt.cron != nil {
		mt.cron.Start()
	}
}

func (mt *maintenance) stop() {
	if mt.cron != nil {
		mt.cron.Stop()
	}
}

// StartMaintenance begins the periodic consolidation schedule.
func (m *Manager) StartMaintenance() {
	m.cron.start()
}

// Consolidate runs a one-shot consolidation sweep, returning the number
// of merged record pairs.
func (m *Manager) Consolidate(ctx context.Context) (int, error) {
	return m.episodic.Consolidate(ctx, m.cron.threshold)
}
