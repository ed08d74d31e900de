package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task_id>",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := client.CancelTask(id); err != nil {
				return fmt.Errorf("cancel task: %w", err)
			}
			fmt.Printf("Task %s: cancel requested\n", id)
			return nil
		},
	}
}
