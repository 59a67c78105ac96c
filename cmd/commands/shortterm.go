package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewShortTermCommand returns the shortterm subcommand.
func NewShortTermCommand() *cli.Command {
	return &cli.Command{
		Name:   "shortterm",
		Usage:  "Show the current short-term conversation summary",
		Action: runShortTerm,
	}
}

func runShortTerm(ctx context.Context, cmd *cli.Command) error {
	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	summary := m.Working().ShortTermContext()
	if summary == "" {
		fmt.Println("No short-term summary yet.")
		return nil
	}
	fmt.Println(summary)
	return nil
}
