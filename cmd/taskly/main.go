// taskly is a day-partitioned task list that works offline and syncs to
// the cloud when signed in.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "taskly",
	Short: "Day-partitioned task tracking with offline-first cloud sync",
	Long: `Taskly keeps one task list per day, stored locally first.

In guest mode everything lives in a local cache. After signing in, every
save also pushes to the cloud, and loads prefer the cloud copy so all
your devices converge. The cloud being unreachable never blocks you:
writes land locally and the next sync cycle reconciles.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: $XDG_DATA_HOME/taskly)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Task Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "account", Title: "Account Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
