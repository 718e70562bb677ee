package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/analytics"
	"github.com/planhq/depgraph/internal/config"
	"github.com/planhq/depgraph/internal/deps"
	"github.com/planhq/depgraph/internal/graph"
	"github.com/planhq/depgraph/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "depgraph",
	Short: "Task dependency graph management",
	Long: `depgraph maintains the directed graph of blocks / is-blocked-by
relationships between tasks. Every mutation is validated against the
graph invariants: no self-loops, no duplicate edges, and no cycles in
the blocking relation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./depgraph.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "edges", Title: "Edge commands:"},
		&cobra.Group{ID: "query", Title: "Query commands:"},
		&cobra.Group{ID: "ops", Title: "Operations commands:"},
	)
}

// env bundles everything a subcommand needs. Close the store when done.
type env struct {
	cfg      *config.Config
	db       *store.DB
	svc      *deps.Service
	analyzer *analytics.Analyzer
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

// openEnv loads config, opens the store, and wires the service stack.
// Exits the process on failure; subcommands call this first.
func openEnv(cmd *cobra.Command) *env {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}

	if err := db.InitSchema(cmd.Context()); err != nil {
		_ = db.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	detector := graph.NewDetector(db, cfg.DepTypes())
	svc := deps.New(db, db, detector, cfg.NewLogger("[deps] "))

	return &env{
		cfg:      cfg,
		db:       db,
		svc:      svc,
		analyzer: analytics.New(db),
	}
}
