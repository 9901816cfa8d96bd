package main

import (
	"fmt"
	"os"

	"codeberg.org/mutker/pulse/internal/config"
	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pulse",
		Short:         "In-process observability engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to a configuration file (toml or yaml)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newRunCommand(), newSnapshotCommand(), newArchiveCommand())

	return root
}

// loadConfig reads configuration for cmd and initializes the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrBindFlags, err)
	}

	cfg, err := config.Load(config.WithConfigFile(path), config.WithFlags(cmd.Flags()))
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Str("service", cfg.ServiceName).Msg("Config loaded")

	return cfg, nil
}
