package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewRecordCommand returns the record subcommand.
func NewRecordCommand() *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Record a conversation turn into memory",
		ArgsUsage: "<user-message>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "agent",
				Aliases: []string{"a"},
				Usage:   "Agent response text for this turn",
			},
			&cli.BoolFlag{
				Name:    "priority",
				Aliases: []string{"p"},
				Usage:   "Mark the turn as explicitly important (bypass the extraction threshold)",
			},
		},
		Action: runRecord,
	}
}

func runRecord(ctx context.Context, cmd *cli.Command) error {
	message := cmd.Args().First()
	if message == "" {
		return fmt.Errorf("usage: mnemo record <user-message>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	sentiment := m.RecordTurn(ctx, message, cmd.String("agent"), cmd.Bool("priority"))
	m.Wait()

	fmt.Printf("Recorded. Sentiment: %s (%.2f)\n", sentiment.Label, sentiment.Score)
	if summary := m.Working().ShortTermContext(); summary != "" {
		fmt.Printf("Short-term context: %s\n", summary)
	}
	return nil
}
