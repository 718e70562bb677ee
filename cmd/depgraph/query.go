package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/types"
	"github.com/planhq/depgraph/internal/ui"
)

var (
	listProject string
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "query",
	Short:   "List dependency edges",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		infos, err := e.svc.FindAll(cmd.Context(), listProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing dependencies: %v\n", err)
			os.Exit(1)
		}

		if listJSON {
			printJSON(infos)
			return
		}

		if len(infos) == 0 {
			fmt.Println("No dependencies found.")
			return
		}
		for _, info := range infos {
			printEdge(info)
		}
		fmt.Printf("\n%d dependencies\n", len(infos))
	},
}

var showJSON bool

var showCmd = &cobra.Command{
	Use:     "show <edge-id>",
	GroupID: "query",
	Short:   "Show a single dependency edge",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		info, err := e.svc.FindOne(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		if showJSON {
			printJSON(info)
			return
		}

		fmt.Printf("%s %s\n", ui.RenderBold("Edge:"), info.ID)
		fmt.Printf("  Task:       %s%s\n", info.TaskID, taskTitle(info.Task))
		fmt.Printf("  Depends on: %s%s\n", info.DependsOnID, taskTitle(info.DependsOn))
		fmt.Printf("  Type:       %s\n", info.Type)
		if info.CreatedBy != "" {
			fmt.Printf("  Created by: %s\n", info.CreatedBy)
		}
		fmt.Printf("  Created:    %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
	},
}

var depsJSON bool

var depsCmd = &cobra.Command{
	Use:     "deps <task-id>",
	GroupID: "query",
	Short:   "Show both edge sets for a task",
	Long: `Show the tasks this task depends on (its blockers) and the tasks
that depend on it (the tasks it blocks).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		td, err := e.svc.GetTaskDependencies(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching dependencies: %v\n", err)
			os.Exit(1)
		}

		if depsJSON {
			printJSON(td)
			return
		}

		fmt.Printf("%s (%d)\n", ui.RenderBold("Depends on:"), len(td.DependsOn))
		for _, info := range td.DependsOn {
			fmt.Printf("  %s %s%s (%s)\n", ui.RenderDim("->"), info.DependsOnID, taskTitle(info.DependsOn), info.Type)
		}
		fmt.Printf("%s (%d)\n", ui.RenderBold("Depended on by:"), len(td.Dependents))
		for _, info := range td.Dependents {
			fmt.Printf("  %s %s%s (%s)\n", ui.RenderDim("<-"), info.TaskID, taskTitle(info.Task), info.Type)
		}
	},
}

var blockedTransitive bool

var blockedCmd = &cobra.Command{
	Use:     "blocked <task-id>",
	GroupID: "query",
	Short:   "Show the tasks a task is blocking",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		if blockedTransitive {
			ids, err := e.analyzer.TransitiveBlockers(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error walking blockers: %v\n", err)
				os.Exit(1)
			}
			if len(ids) == 0 {
				fmt.Printf("%s is not blocked by anything.\n", args[0])
				return
			}
			fmt.Printf("%s is transitively blocked by %d tasks:\n", args[0], len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return
		}

		infos, err := e.svc.GetBlockedTasks(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching blocked tasks: %v\n", err)
			os.Exit(1)
		}
		if len(infos) == 0 {
			fmt.Printf("%s is not blocking anything.\n", args[0])
			return
		}
		fmt.Printf("%s blocks %d tasks:\n", args[0], len(infos))
		for _, info := range infos {
			fmt.Printf("  %s %s%s (%s)\n", ui.RenderWarn("⊘"), info.TaskID, taskTitle(info.Task), info.Type)
		}
	},
}

var (
	statsProject string
	statsJSON    bool
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "query",
	Short:   "Show graph-level statistics",
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		stats, err := e.analyzer.ProjectStats(cmd.Context(), statsProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error computing stats: %v\n", err)
			os.Exit(1)
		}

		if statsJSON {
			printJSON(stats)
			return
		}

		fmt.Printf("%s\n", ui.RenderBold("Dependency graph:"))
		fmt.Printf("  Total edges:   %d\n", stats.TotalDependencies)
		fmt.Printf("  Blocked tasks: %d\n", stats.BlockedTasks)
	},
}

func printEdge(info *types.DependencyInfo) {
	fmt.Printf("%s  %s %s %s (%s)\n",
		ui.RenderDim(info.ID), info.TaskID, ui.RenderAccent("->"), info.DependsOnID, info.Type)
}

func taskTitle(ref *types.TaskRef) string {
	if ref == nil || ref.Title == "" {
		return ""
	}
	return fmt.Sprintf(" %q", ref.Title)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	listCmd.Flags().StringVar(&listProject, "project", "", "filter by project id")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output JSON")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output JSON")
	depsCmd.Flags().BoolVar(&depsJSON, "json", false, "output JSON")
	blockedCmd.Flags().BoolVar(&blockedTransitive, "transitive", false, "walk the full blocking chain upward")
	statsCmd.Flags().StringVar(&statsProject, "project", "", "filter by project id")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output JSON")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(blockedCmd)
	rootCmd.AddCommand(statsCmd)
}
