package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tasklyapp/taskly/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "advanced",
	Short:   "Run the background sync daemon",
	Long: `Run a long-lived process that keeps the cache and cloud converged.

The daemon listens to the signal journal so saves from other taskly
processes trigger a push, and runs a periodic full cycle as a safety
net. Logs rotate in the data directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		eng, err := a.engine(ctx)
		if err != nil {
			return err
		}
		if !eng.CloudMode() {
			return fmt.Errorf("daemon requires cloud mode; run 'taskly login' first")
		}

		logger := log.New(&lumberjack.Logger{
			Filename:   a.cfg.DaemonLogPath(),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}, "[daemon] ", log.LstdFlags)

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = a.cfg.SyncInterval
		}

		d, err := daemon.New(eng, a.bus(), &daemon.Config{
			SyncInterval:     interval,
			DebounceInterval: 250 * time.Millisecond,
			Logger:           logger,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Daemon started (interval %v, log %s)\n", interval, a.cfg.DaemonLogPath())
		fmt.Println("Press Ctrl+C to stop...")

		runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return d.Start(runCtx)
	},
}

func init() {
	daemonCmd.Flags().Duration("interval", 0, "Periodic full-sync interval (default from config)")
	rootCmd.AddCommand(daemonCmd)
}
