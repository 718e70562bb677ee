package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/importer"
	"github.com/planhq/depgraph/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file.jsonl>",
	GroupID: "ops",
	Short:   "Import dependency edges from a JSONL file",
	Long: `Import edges from a JSONL file, one edge per line. Lines that fail
validation (duplicates, cycles, missing tasks) are skipped and reported;
the rest are created. Pass - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		var (
			res *importer.Result
			err error
		)
		if args[0] == "-" {
			res, err = importer.Import(cmd.Context(), e.svc, os.Stdin)
		} else {
			res, err = importer.ImportFile(cmd.Context(), e.svc, args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Import failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Imported %d edges, skipped %d\n", ui.RenderPass("✓"), res.Imported, res.Skipped)
		for _, msg := range res.Errors {
			fmt.Printf("  %s %s\n", ui.RenderWarn("!"), msg)
		}
	},
}

var exportProject string

var exportCmd = &cobra.Command{
	Use:     "export <file.jsonl>",
	GroupID: "ops",
	Short:   "Export dependency edges to a JSONL file",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		var (
			n   int
			err error
		)
		if args[0] == "-" {
			n, err = importer.Export(cmd.Context(), e.svc, exportProject, os.Stdout)
		} else {
			n, err = importer.ExportFile(cmd.Context(), e.svc, exportProject, args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Export failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		if args[0] != "-" {
			fmt.Printf("%s Exported %d edges to %s\n", ui.RenderPass("✓"), n, args[0])
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProject, "project", "", "filter by project id")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
