package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

// NewRecallCommand returns the recall subcommand.
func NewRecallCommand() *cli.Command {
	return &cli.Command{
		Name:      "recall",
		Usage:     "Retrieve episodic memories by semantic similarity",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
				Value:   10,
			},
			&cli.FloatFlag{
				Name:  "min-importance",
				Usage: "Minimum decayed importance",
			},
		},
		Action: runRecall,
	}
}

func runRecall(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: mnemo recall <query>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	records, err := m.Episodic().Retrieve(ctx, query, cmd.Int("max"), cmd.Float("min-importance"))
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No matching memories found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IMPORTANCE\tID\tOCCURRED\tEMOTION\tCONTENT")
	for _, r := range records {
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n",
			r.Importance, r.ID, r.OccurredAt.Format("2006-01-02 15:04"), r.Emotion.Label, truncate(r.Content, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
