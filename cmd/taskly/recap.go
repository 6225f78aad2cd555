package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tasklyapp/taskly/internal/recap"
	"github.com/tasklyapp/taskly/internal/task"
	"github.com/tasklyapp/taskly/internal/ui"
)

var recapCmd = &cobra.Command{
	Use:     "recap",
	GroupID: "advanced",
	Short:   "Summarize recent task activity with Claude",
	Long: `Generate a short natural-language recap of your recent days.

Requires ANTHROPIC_API_KEY in the environment. Only task text leaves
the machine; no account or sync data is sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY not set")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		days, err := a.cache.Days(ctx)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("days")
		sort.Sort(sort.Reverse(sort.StringSlice(days)))
		if len(days) > limit {
			days = days[:limit]
		}

		history := make(map[string][]task.Task, len(days))
		for _, day := range days {
			tasks, err := a.cache.Day(ctx, day)
			if err != nil {
				return err
			}
			history[day] = tasks
		}

		summary, err := recap.New(apiKey).Summarize(ctx, history)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n\n%s\n", ui.RenderHeader("Recap"), summary)
		return nil
	},
}

func init() {
	recapCmd.Flags().Int("days", 7, "Number of recent days to include")
	rootCmd.AddCommand(recapCmd)
}
