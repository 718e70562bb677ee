package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/watcher"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "ops",
	Short:   "Watch a spool directory and import dropped edge files",
	Long: `Watch a spool directory for JSONL edge files. New files are imported
through the same validation path as the import command; processed files
are removed, failed ones renamed with a .failed suffix.

Runs until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		dir := watchDir
		if dir == "" {
			dir = e.cfg.SpoolDir
		}

		w, err := watcher.New(e.svc, dir, e.cfg.NewLogger("[watcher] "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error starting watcher: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s (ctrl-c to stop)\n", dir)
		if err := w.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Watcher failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "spool directory (default: from config)")

	rootCmd.AddCommand(watchCmd)
}
