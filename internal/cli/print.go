package cli

import (
	"fmt"

	"github.com/example/atomsched/pkg/atomclient"
)

// printTaskStatus renders a TaskStatus the way the teacher's status/list
// commands render workflow submissions: a short labeled block.
func printTaskStatus(ts *atomclient.TaskStatus) {
	fmt.Printf("Task:   %s\n", ts.ID)
	fmt.Printf("Status: %s\n", ts.Status)
	if !ts.StartedAt.IsZero() {
		fmt.Printf("Started:  %s\n", ts.StartedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if !ts.FinishedAt.IsZero() {
		fmt.Printf("Finished: %s\n", ts.FinishedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	if ts.Error != "" {
		fmt.Printf("Error:  %s\n", ts.Error)
	}
	if len(ts.Profiling) > 0 {
		fmt.Println("Profiling:")
		for stage, d := range ts.Profiling {
			fmt.Printf("  %-12s %s\n", stage, d)
		}
	}
	if len(ts.Outputs) > 0 {
		fmt.Printf("Outputs: %d tensor(s)\n", len(ts.Outputs))
	}
}
