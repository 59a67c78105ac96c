package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewConsolidateCommand returns the consolidate subcommand.
func NewConsolidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "consolidate",
		Usage: "Merge near-duplicate episodic memories",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep running and sweep on the configured schedule",
			},
		},
		Action: runConsolidate,
	}
}

func runConsolidate(ctx context.Context, cmd *cli.Command) error {
	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	merged, err := m.Consolidate(ctx)
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}
	fmt.Printf("Consolidated %d memory pair(s).\n", merged)

	if cmd.Bool("watch") {
		m.StartMaintenance()
		fmt.Println("Watching for scheduled sweeps. Ctrl-C to stop.")
		<-ctx.Done()
	}
	return nil
}
