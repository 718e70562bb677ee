package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/deps"
	"github.com/planhq/depgraph/internal/types"
	"github.com/planhq/depgraph/internal/ui"
)

var (
	addType      string
	addCreatedBy string
)

var addCmd = &cobra.Command{
	Use:     "add <task-id> <depends-on-id>",
	GroupID: "edges",
	Short:   "Add a dependency edge",
	Long: `Add a dependency edge: the first task is blocked by the second.

The edge is rejected if it would duplicate an existing edge, connect a
task to itself, or close a cycle in the blocking graph.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		info, err := e.svc.Create(cmd.Context(), deps.CreateRequest{
			TaskID:      args[0],
			DependsOnID: args[1],
			Type:        types.DependencyType(addType),
			CreatedBy:   addCreatedBy,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s %s now depends on %s (%s)\n",
			ui.RenderPass("✓"), info.TaskID, info.DependsOnID, info.Type)
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <task-id> <depends-on-id>",
	GroupID: "edges",
	Short:   "Remove a dependency edge by task pair",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		if err := e.svc.RemoveByTasks(cmd.Context(), args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Removed dependency %s -> %s\n", ui.RenderPass("✓"), args[0], args[1])
	},
}

var (
	updateTaskID      string
	updateDependsOnID string
	updateType        string
)

var updateCmd = &cobra.Command{
	Use:     "update <edge-id>",
	GroupID: "edges",
	Short:   "Re-point or re-type a dependency edge",
	Long: `Update an existing edge. Unset flags keep their current values.
Changing an endpoint re-runs the full validation against the new pair,
with the edge itself excluded from the cycle check.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		var patch deps.UpdateRequest
		if cmd.Flags().Changed("task") {
			patch.TaskID = &updateTaskID
		}
		if cmd.Flags().Changed("depends-on") {
			patch.DependsOnID = &updateDependsOnID
		}
		if cmd.Flags().Changed("type") {
			t := types.DependencyType(updateType)
			patch.Type = &t
		}

		info, err := e.svc.Update(cmd.Context(), args[0], patch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s %s now depends on %s (%s)\n",
			ui.RenderPass("✓"), info.TaskID, info.DependsOnID, info.Type)
	},
}

func init() {
	addCmd.Flags().StringVar(&addType, "type", string(types.DepBlocks), "relationship type")
	addCmd.Flags().StringVar(&addCreatedBy, "by", "", "acting user id")

	updateCmd.Flags().StringVar(&updateTaskID, "task", "", "new dependent task id")
	updateCmd.Flags().StringVar(&updateDependsOnID, "depends-on", "", "new blocking task id")
	updateCmd.Flags().StringVar(&updateType, "type", "", "new relationship type")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(updateCmd)
}
