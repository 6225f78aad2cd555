package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tasklyapp/taskly/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start the live task dashboard",
	Long: `Start a local HTTP server with a WebSocket feed of task changes.

Every save from any taskly process is broadcast to connected clients,
so the dashboard always shows the current day's list.

WebSocket messages:
- task_list: the full list for today
- sync_event: a refresh signal was observed

Example usage:
  taskly dashboard                        # default address
  taskly dashboard --addr localhost:9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.DashboardAddr
		}

		server := dashboard.NewServer(a.cache, a.bus(), &dashboard.Config{
			Addr:   addr,
			Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
		})

		if err := server.Start(); err != nil {
			return err
		}

		fmt.Printf("Dashboard started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard...")
		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().String("addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
