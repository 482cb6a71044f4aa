package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datallboy/gomodpack/internal/app"
	"github.com/datallboy/gomodpack/internal/infra/config"
	"github.com/datallboy/gomodpack/internal/infra/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "gomodpack",
		Short:         "Install CurseForge modpacks from their zip archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default gomodpack.yaml, then /config/gomodpack.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(
		newInstallCmd(opts),
		newHistoryCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// loadConfig reads the config and applies the global flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// newApp wires the logger and the shared application context.
func newApp(cfg *config.Config) (*app.Context, error) {
	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Log.Path, err)
	}
	return app.NewContext(cfg, log), nil
}
