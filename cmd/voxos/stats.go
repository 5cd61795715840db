package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxos-ai/voxos/internal/config"
	"github.com/voxos-ai/voxos/internal/convo"
)

func newStatsCmd(configPath *string) *cobra.Command {
	var prune time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage statistics from the conversation archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Archive.Path == "" {
				return fmt.Errorf("no archive configured (set archive.path)")
			}

			archive, err := convo.OpenArchive(cfg.Archive.Path)
			if err != nil {
				return err
			}
			defer archive.Close()

			out := cmd.OutOrStdout()

			if prune > 0 {
				removed, err := archive.Prune(time.Now().Add(-prune))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "pruned %d rows older than %s\n\n", removed, prune)
			}

			turns, err := archive.TurnCount()
			if err != nil {
				return err
			}
			stats, err := archive.Stats()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "turns recorded:  %d\n", turns)
			fmt.Fprintf(out, "calls executed:  %d (%d ok, %d failed)\n",
				stats.Total, stats.Succeeded, stats.Failed)

			if len(stats.PerCapability) > 0 {
				fmt.Fprintln(out, "\nper capability:")
				names := make([]string, 0, len(stats.PerCapability))
				for name := range stats.PerCapability {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "  %-20s %d\n", name, stats.PerCapability[name])
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete rows older than this duration before reporting (e.g. 720h)")
	return cmd
}
