package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fairway/internal/gameserver"
	"github.com/cory-johannsen/fairway/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting game server",
				zap.String("addr", cfg.Transport.Addr()),
				zap.String("path", cfg.Transport.Path),
				zap.String("health_addr", cfg.Health.Addr()),
			)

			ctx := cmd.Context()
			backends, err := gameserver.Connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			srv, err := gameserver.New(cfg, backends, logger)
			if err != nil {
				if backends.Close != nil {
					backends.Close()
				}
				return err
			}

			lc := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
			srv.Register(lc)

			logger.Info("game server ready", zap.Duration("startup", time.Since(start)))
			return lc.Run(ctx)
		},
	}
}
