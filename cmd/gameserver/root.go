package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/config"
	"github.com/cory-johannsen/fairway/internal/observability"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "gameserver",
		Short: "Golf game session server",
		Long: `gameserver runs the game session server: player connections over
websocket, rooms, and profile persistence in PostgreSQL.

Configuration is read from a YAML file; every key can be overridden with a
FAIRWAY_ environment variable (e.g. FAIRWAY_AUTH_SECRET).`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "configs/dev.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional KEY=VALUE file loaded before the environment is read")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newAccountCmd(opts))
	return root
}

// load reads the env file and the configuration and builds the logger.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger, nil
}
