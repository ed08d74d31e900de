package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newWaitCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait <task_id>",
		Short: "Block until a task reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ts, err := client.WaitTask(id, timeout)
			if err != nil {
				return fmt.Errorf("wait task: %w", err)
			}
			printTaskStatus(ts)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum time to wait (0 = no timeout)")
	return cmd
}
