package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/events"
	"github.com/mnemo-ai/mnemo/internal/memory"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "mnemo",
		Usage: "Multi-tier memory for conversational agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Print pipeline events as they happen",
			},
		},
		Commands: []*cli.Command{
			NewRecordCommand(),
			NewRecallCommand(),
			NewTeachCommand(),
			NewLearningsCommand(),
			NewProfileCommand(),
			NewShortTermCommand(),
			NewConsolidateCommand(),
			NewStatsCommand(),
		},
	}
}

// openManager loads configuration and builds the memory subsystem for a
// command invocation.
func openManager(ctx context.Context, cmd *cli.Command) (*memory.Manager, error) {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	m, err := memory.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cmd.Bool("verbose") {
		m.Bus().Subscribe(func(e events.Event) {
			fmt.Fprintf(os.Stderr, "event %s %v\n", e.Type, e.Payload)
		})
	}
	return m, nil
}
