package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/mnemo-ai/mnemo/internal/learning"
)

// NewLearningsCommand returns the learnings subcommand.
func NewLearningsCommand() *cli.Command {
	return &cli.Command{
		Name:  "learnings",
		Usage: "Manage learned procedures",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List learned procedures",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Only show procedures with this tag",
					},
				},
				Action: runLearningsList,
			},
			{
				Name:      "search",
				Usage:     "Search procedures by name, description or steps",
				ArgsUsage: "<query>",
				Action:    runLearningsSearch,
			},
			{
				Name:      "show",
				Usage:     "Show a procedure",
				ArgsUsage: "<name-or-id>",
				Action:    runLearningsShow,
			},
			{
				Name:      "execute",
				Usage:     "Mark a procedure as executed",
				ArgsUsage: "<name-or-id>",
				Action:    runLearningsExecute,
			},
			{
				Name:      "forget",
				Usage:     "Delete a procedure",
				ArgsUsage: "<name-or-id>",
				Action:    runLearningsForget,
			},
		},
		DefaultCommand: "list",
	}
}

func runLearningsList(ctx context.Context, cmd *cli.Command) error {
	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	procs := m.Catalog().List(cmd.String("tag"))
	if len(procs) == 0 {
		fmt.Println("No procedures learned.")
		return nil
	}
	return printProcedures(procs)
}

func runLearningsSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("usage: mnemo learnings search <query>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	procs := m.Catalog().Search(query)
	if len(procs) == 0 {
		fmt.Println("No matching procedures found.")
		return nil
	}
	return printProcedures(procs)
}

func runLearningsShow(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: mnemo learnings show <name-or-id>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	proc, err := m.Catalog().Get(name)
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}

	fmt.Printf("ID:          %s\n", proc.ID)
	fmt.Printf("Name:        %s\n", proc.Name)
	if proc.Description != "" {
		fmt.Printf("Description: %s\n", proc.Description)
	}
	fmt.Printf("Created:     %s\n", proc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:     %s\n", proc.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Executions:  %d\n", proc.ExecutionCount)
	if proc.LastExecutedAt != nil {
		fmt.Printf("Last run:    %s\n", proc.LastExecutedAt.Format("2006-01-02 15:04:05"))
	}
	if len(proc.Tags) > 0 {
		fmt.Printf("Tags:        %s\n", strings.Join(proc.Tags, ", "))
	}
	fmt.Println("\nSteps:")
	for i, step := range proc.Steps {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	return nil
}

func runLearningsExecute(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: mnemo learnings execute <name-or-id>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	proc, err := m.Catalog().Execute(name)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	fmt.Printf("%s executed %d time(s).\n", proc.ID, proc.ExecutionCount)
	for i, step := range proc.Steps {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	return nil
}

func runLearningsForget(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: mnemo learnings forget <name-or-id>")
	}

	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Catalog().Delete(name); err != nil {
		return fmt.Errorf("forget: %w", err)
	}
	fmt.Printf("Procedure %s deleted.\n", name)
	return nil
}

func printProcedures(procs []learning.Procedure) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTEPS\tRUNS\tTAGS")
	for _, p := range procs {
		tags := "-"
		if len(p.Tags) > 0 {
			tags = strings.Join(p.Tags, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Name, len(p.Steps), p.ExecutionCount, tags)
	}
	return w.Flush()
}
