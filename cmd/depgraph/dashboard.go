package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/dashboard"
	"github.com/planhq/depgraph/internal/watcher"
)

var dashboardPort int

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "ops",
	Short:   "Serve a live WebSocket feed of graph mutations",
	Long: `Serve a WebSocket endpoint that broadcasts every edge created,
updated, or removed while the server runs. The spool watcher runs
alongside it, so dropped JSONL files show up on the feed too.

Connect to ws://localhost:<port>/ws; /health reports client count.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		port := dashboardPort
		if port == 0 {
			port = e.cfg.DashboardPort
		}

		srv := dashboard.NewServer(port, e.cfg.NewLogger("[dashboard] "))
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
			os.Exit(1)
		}
		e.svc.SetNotifier(srv)

		w, err := watcher.New(e.svc, e.cfg.SpoolDir, e.cfg.NewLogger("[watcher] "))
		if err != nil {
			_ = srv.Stop()
			fmt.Fprintf(os.Stderr, "Error starting watcher: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Dashboard listening on %s (ctrl-c to stop)\n", srv.Addr())
		if err := w.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Watcher failed: %v\n", err)
		}

		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping dashboard: %v\n", err)
		}
	},
}

func init() {
	dashboardCmd.Flags().IntVar(&dashboardPort, "port", 0, "listen port (default: from config)")

	rootCmd.AddCommand(dashboardCmd)
}
