package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/tgrelay/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cmd.Flags().Set("config", args[0]); err != nil {
					return err
				}
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			prefix := cfg.Server.RoutePrefix()
			if prefix != "" {
				prefix = "/" + prefix
			}
			fmt.Fprintln(out, "Configuration OK")
			fmt.Fprintf(out, "  bind:   %s\n", cfg.Server.Bind)
			fmt.Fprintf(out, "  prefix: %s/\n", prefix)
			fmt.Fprintf(out, "  dedup:  %s\n", cfg.Dedup.Backend)
			for _, w := range config.Warnings(cfg) {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	})
	return cmd
}
