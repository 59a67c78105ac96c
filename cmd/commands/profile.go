package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
)

// NewProfileCommand returns the profile subcommand.
func NewProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show the analyzed user profile",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "summary",
				Aliases: []string{"s"},
				Usage:   "Print a one-line profile summary",
			},
		},
		Action: runProfile,
	}
}

func runProfile(ctx context.Context, cmd *cli.Command) error {
	m, err := openManager(ctx, cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	p := m.Profile().Profile()
	if p.LastUpdatedAt.IsZero() {
		fmt.Println("No profile yet. Record more turns first.")
		return nil
	}
	if cmd.Bool("summary") {
		fmt.Println(m.Profile().SummaryLine())
		return nil
	}

	fmt.Printf("Updated:   %s (%d messages analyzed)\n", p.LastUpdatedAt.Format("2006-01-02 15:04:05"), p.TotalMessagesAnalyzed)
	printList("Interests", p.PrimaryInterests)
	printList("Topics", p.FrequentTopics)
	if p.CommunicationStyle != "" {
		fmt.Printf("Style:     %s\n", p.CommunicationStyle)
	}
	printList("Expertise", p.ExpertiseAreas)
	printList("Goals", p.LearningGoals)
	if p.EmotionalPatterns != "" {
		fmt.Printf("Emotions:  %s\n", p.EmotionalPatterns)
	}
	for k, v := range p.Preferences {
		fmt.Printf("Prefers:   %s = %s\n", k, v)
	}
	return nil
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%-10s %s\n", label+":", strings.Join(items, ", "))
}
