package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewStatsCommand returns the stats subcommand.
func NewStatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show memory subsystem statistics",
		Action: runStats,
	}
}

func runStats(ctx context.Context, cmd *cli.Command) error {
	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	epi, err := m.Episodic().CollectStats(ctx)
	if err != nil {
		return fmt.Errorf("episodic stats: %w", err)
	}

	fmt.Printf("Episodic memories: %d\n", epi.Total)
	for label, count := range epi.Emotions {
		fmt.Printf("  %s: %d\n", label, count)
	}
	if len(epi.MostAccessed) > 0 {
		fmt.Println("Most accessed:")
		for _, r := range epi.MostAccessed {
			fmt.Printf("  %s (%d) %s\n", r.ID, r.AccessCount, truncate(r.Content, 60))
		}
	}

	cat := m.Catalog().Stats()
	fmt.Printf("Procedures: %d\n", cat.Total)
	if len(cat.MostUsed) > 0 {
		fmt.Println("Most used:")
		for _, p := range cat.MostUsed {
			fmt.Printf("  %s (%d runs)\n", p.ID, p.ExecutionCount)
		}
	}
	for tag, count := range cat.Tags {
		fmt.Printf("  tag %s: %d\n", tag, count)
	}

	if line := m.Profile().SummaryLine(); line != "" {
		fmt.Printf("Profile: %s\n", line)
	}
	return nil
}
