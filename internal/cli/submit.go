package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/atomsched/pkg/atomclient"
	"github.com/example/atomsched/pkg/tensor"
)

func newSubmitCmd() *cobra.Command {
	var modelID string
	var priority int
	var dependsOn []string
	var inputsFile string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an inference task",
		Long:  "Submit an inference task against a loaded model, optionally depending on other task IDs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var inputs []tensor.Tensor
			if inputsFile != "" {
				data, err := os.ReadFile(inputsFile)
				if err != nil {
					return fmt.Errorf("read inputs: %w", err)
				}
				if err := yaml.Unmarshal(data, &inputs); err != nil {
					return fmt.Errorf("parse inputs: %w", err)
				}
			}

			id, err := client.SubmitTask(atomclient.SubmitTaskRequest{
				ModelID:   modelID,
				Priority:  priority,
				DependsOn: dependsOn,
				Inputs:    inputs,
			})
			if err != nil {
				return fmt.Errorf("submit task: %w", err)
			}
			fmt.Printf("Task submitted: %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelID, "model", "m", "", "Model ID to run inference against (required)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Task priority (higher runs first)")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "Task IDs this task depends on")
	cmd.Flags().StringVarP(&inputsFile, "inputs", "i", "", "Input tensors file (YAML/JSON)")
	cmd.MarkFlagRequired("model")
	return cmd
}
