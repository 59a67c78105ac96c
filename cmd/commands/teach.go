package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/mnemo-ai/mnemo/internal/learning"
)

// NewTeachCommand returns the teach subcommand.
func NewTeachCommand() *cli.Command {
	return &cli.Command{
		Name:      "teach",
		Usage:     "Explicitly teach a procedure, fact or preference",
		ArgsUsage: "<message>",
		Action:    runTeach,
	}
}

func runTeach(ctx context.Context, cmd *cli.Command) error {
	message := cmd.Args().First()
	if message == "" {
		return fmt.Errorf("usage: mnemo teach <message>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	result, err := m.Teach(ctx, message)
	if err != nil {
		return fmt.Errorf("teach: %w", err)
	}

	switch result.Type {
	case learning.TypeProcedure:
		fmt.Printf("Learned procedure %s.\n", result.ProcedureID)
	default:
		fmt.Printf("Remembered %s: %s\n", result.Type, result.Description)
	}
	return nil
}
