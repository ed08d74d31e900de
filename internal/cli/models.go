package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/atomsched/pkg/atomclient"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage the server's loaded models",
	}
	cmd.AddCommand(newModelsLoadCmd(), newModelsListCmd(), newModelsUnloadCmd())
	return cmd
}

func newModelsLoadCmd() *cobra.Command {
	var id, factory, configFile string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a model via a registered factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			var config map[string]any
			if configFile != "" {
				data, err := os.ReadFile(configFile)
				if err != nil {
					return fmt.Errorf("read config: %w", err)
				}
				if err := yaml.Unmarshal(data, &config); err != nil {
					return fmt.Errorf("parse config: %w", err)
				}
			}
			if err := client.LoadModel(atomclient.LoadModelRequest{ID: id, Factory: factory, Config: config}); err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			fmt.Printf("Model loaded: %s (factory: %s)\n", id, factory)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Model ID (required)")
	cmd.Flags().StringVar(&factory, "factory", "", "Factory key, e.g. cpu or script (required)")
	cmd.Flags().StringVar(&configFile, "config", "", "Model configuration file (YAML/JSON)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("factory")
	return cmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List currently loaded models",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := client.ListModels()
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			if len(models) == 0 {
				fmt.Println("No models loaded.")
				return nil
			}
			if isTTY {
				fmt.Printf("%-24s  %-10s  %-10s  %s\n", "ID", "BACKEND", "DEVICE", "MEMORY")
			}
			for _, m := range models {
				fmt.Printf("%-24v  %-10v  %-10v  %s\n", m["id"], m["backend"], m["device"], humanizeBytes(m["memory_bytes"]))
			}
			return nil
		},
	}
}

func newModelsUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unload <model_id>",
		Short: "Unload a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.UnloadModel(args[0]); err != nil {
				return fmt.Errorf("unload model: %w", err)
			}
			fmt.Printf("Model unloaded: %s\n", args[0])
			return nil
		},
	}
}
