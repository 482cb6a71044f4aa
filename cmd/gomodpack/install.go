package main

import (
	"github.com/spf13/cobra"

	"github.com/datallboy/gomodpack/internal/installer"
)

func newInstallCmd(root *rootOptions) *cobra.Command {
	var (
		apiKey  string
		outDir  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "install <modpack.zip>",
		Short: "Download every mod of a modpack and merge its overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("api-key") {
				cfg.CurseForge.APIKey = apiKey
			}
			if cmd.Flags().Changed("out") {
				cfg.Download.RootDir = outDir
			}
			if cmd.Flags().Changed("workers") {
				cfg.Download.Workers = workers
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.OpenStore(cmd.Context()); err != nil {
				// History is optional, an install must not fail over it.
				a.Logger.Warn("run history disabled: %v", err)
			}

			if cfg.Authenticated() {
				a.Logger.Info("Using the CurseForge API (authenticated)")
			} else {
				a.Logger.Info("Using the public CurseForge endpoints, files will not be verified")
			}

			// The service logs the summary and the failures itself.
			_, err = installer.NewService(a).Install(cmd.Context(), args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "CurseForge API key (overrides curseforge.api_key)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "root directory for installed modpacks (overrides download.root_dir)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent downloads (overrides download.workers)")
	return cmd
}
