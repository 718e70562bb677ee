package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planhq/depgraph/internal/store"
	"github.com/planhq/depgraph/internal/ui"
)

var (
	taskTitleFlag   string
	taskSlugFlag    string
	taskStatusFlag  string
	taskProjectFlag string
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "edges",
	Short:   "Maintain the task projection",
	Long: `Maintain the local task projection that edge validation resolves
endpoints against. In a deployed system this table is fed by task
events; these commands cover standalone use.`,
}

var taskUpsertCmd = &cobra.Command{
	Use:   "upsert <task-id>",
	Short: "Create or refresh a task projection row",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		if taskTitleFlag == "" {
			taskTitleFlag = args[0]
		}
		err := e.db.UpsertTask(cmd.Context(), &store.TaskRecord{
			ID:        args[0],
			Title:     taskTitleFlag,
			Slug:      taskSlugFlag,
			Status:    taskStatusFlag,
			ProjectID: taskProjectFlag,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Task %s recorded\n", ui.RenderPass("✓"), args[0])
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <task-id>",
	Short: "Remove a task projection row and its edges",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := openEnv(cmd)
		defer e.close()

		if err := e.db.DeleteTask(cmd.Context(), args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		fmt.Printf("%s Task %s removed\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	taskUpsertCmd.Flags().StringVar(&taskTitleFlag, "title", "", "task title")
	taskUpsertCmd.Flags().StringVar(&taskSlugFlag, "slug", "", "task slug")
	taskUpsertCmd.Flags().StringVar(&taskStatusFlag, "status", "open", "task status")
	taskUpsertCmd.Flags().StringVar(&taskProjectFlag, "project", "", "project id")

	taskCmd.AddCommand(taskUpsertCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
