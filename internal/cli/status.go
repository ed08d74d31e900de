package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task_id>",
		Short: "Check the status of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ts, err := client.GetTask(id)
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}
			printTaskStatus(ts)
			return nil
		},
	}
}
