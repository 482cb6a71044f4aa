package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			out, err := cfg.Dump()
			if err != nil {
				return err
			}

			if cfg.File != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", cfg.File)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "# no config file, defaults and environment only")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
