package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxos-ai/voxos/internal/config"
	"github.com/voxos-ai/voxos/pkg/provider/llm"
)

func newModelsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available on the configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			provider, err := newBackend(cfg.Model)
			if err != nil {
				return err
			}

			models, err := provider.Models(cmd.Context())
			if errors.Is(err, llm.ErrNoModelListing) {
				return fmt.Errorf("backend %q cannot list models", cfg.Model.Provider)
			}
			if err != nil {
				return err
			}

			active := cfg.Model.Name
			for _, m := range models {
				marker := "  "
				if m == active || m == active+":latest" {
					marker = "* "
				}
				fmt.Fprintln(cmd.OutOrStdout(), marker+m)
			}
			return nil
		},
	}
}
