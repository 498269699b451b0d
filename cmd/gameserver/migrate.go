package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var (
		source string
		steps  int
	)

	run := func(cmd *cobra.Command, direction string) error {
		start := time.Now()
		cfg, _, err := opts.load()
		if err != nil {
			return err
		}

		m, err := migrate.New(source, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("creating migrator: %w", err)
		}
		defer m.Close()

		switch {
		case steps > 0 && direction == "down":
			err = m.Steps(-steps)
		case steps > 0:
			err = m.Steps(steps)
		case direction == "down":
			err = m.Down()
		default:
			err = m.Up()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}

		version, dirty, _ := m.Version()
		out := cmd.OutOrStdout()
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Fprintf(out, "no changes (version=%d dirty=%v) [%s]\n", version, dirty, time.Since(start))
		} else {
			fmt.Fprintf(out, "migrated %s to version=%d dirty=%v [%s]\n", direction, version, dirty, time.Since(start))
		}
		return nil
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "file://migrations", "migration source URL")
	cmd.PersistentFlags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  func(cmd *cobra.Command, _ []string) error { return run(cmd, "up") },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		RunE:  func(cmd *cobra.Command, _ []string) error { return run(cmd, "down") },
	})
	return cmd
}
