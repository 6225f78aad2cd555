package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tasklyapp/taskly/internal/signal"
	"github.com/tasklyapp/taskly/internal/task"
	"github.com/tasklyapp/taskly/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local changes and pull the merged result",
	Long: `Run one full sync cycle for a day.

The cycle pushes the local partition's diff to the cloud (local edits
win), then reloads the merged result into the cache. In guest mode this
is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		on, _ := cmd.Flags().GetString("on")
		day, err := resolveDay(on)
		if err != nil {
			return err
		}

		eng, err := a.engine(ctx)
		if err != nil {
			return err
		}
		if !eng.CloudMode() {
			fmt.Println("Guest mode: nothing to sync")
			return nil
		}

		start := time.Now()
		stats, err := eng.Push(ctx, day)
		if err != nil {
			return err
		}
		if _, err := eng.Load(ctx, day); err != nil {
			return err
		}

		if err := a.bus().Publish(signal.KindForceRefresh); err != nil {
			a.logger.Printf("Failed to publish signal: %v", err)
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		fmt.Printf("%s Synced %s in %v\n", ui.RenderPass("✓"), day, elapsed)
		fmt.Printf("   Inserted: %d\n", stats.Inserted)
		fmt.Printf("   Updated:  %d\n", stats.Updated)
		fmt.Printf("   Deleted:  %d\n", stats.Deleted)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show cache and sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		mode, err := a.cache.Mode(ctx)
		if err != nil {
			return err
		}
		days, err := a.cache.Days(ctx)
		if err != nil {
			return err
		}
		current, err := a.cache.Current(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", ui.RenderHeader("Taskly status"))
		fmt.Printf("   Mode:       %s\n", ui.RenderAccent(string(mode)))
		fmt.Printf("   Backend:    %s\n", a.cfg.Backend)
		fmt.Printf("   Data dir:   %s\n", a.cfg.Dir)
		fmt.Printf("   Days:       %d\n", len(days))
		fmt.Printf("   Today:      %d task(s), %d open\n", len(current), task.Pending(current))

		if info, err := os.Stat(a.cfg.CachePath()); err == nil {
			fmt.Printf("   Cache size: %d KB\n", info.Size()/1024)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("on", "", "Day to sync (default: today)")
	rootCmd.AddCommand(syncCmd, statusCmd)
}
