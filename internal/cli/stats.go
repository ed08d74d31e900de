package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show scheduler statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := client.Stats()
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}
			fmt.Printf("Submitted:       %v\n", data["submitted"])
			fmt.Printf("Succeeded:       %v\n", data["succeeded"])
			fmt.Printf("Failed:          %v\n", data["failed"])
			fmt.Printf("Cancelled:       %v\n", data["cancelled"])
			fmt.Printf("Average latency: %v\n", data["average_latency"])
			fmt.Printf("Total memory:    %s\n", humanizeBytes(data["total_memory"]))
			return nil
		},
	}
}

// humanizeBytes renders a JSON-decoded byte count (float64 or int64,
// depending on the transport) as a human-readable size like "512 MB".
func humanizeBytes(v any) string {
	switch n := v.(type) {
	case float64:
		return humanize.Bytes(uint64(n))
	case int64:
		return humanize.Bytes(uint64(n))
	default:
		return fmt.Sprintf("%v", v)
	}
}
