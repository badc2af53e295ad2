// cmd/projectsync/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"scm-project-sync/internal/api"
	"scm-project-sync/internal/database"
)

const (
	defaultMigrations = "file://migrations"
	shutdownTimeout   = 10 * time.Second
)

func (a *app) serveCommand() *cobra.Command {
	var (
		migrations string
		migrateUp  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded sync runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), migrations, migrateUp)
		},
	}
	cmd.Flags().StringVar(&migrations, "migrations", defaultMigrations, "migration source url")
	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrations string, migrateUp bool) error {
	if err := a.cfg.RequireDB(); err != nil {
		return err
	}
	if migrateUp {
		if err := runMigrations(migrations, a.cfg.DBURL, false); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		a.logger.Info("Database migrations applied successfully")
	}

	dbpool, err := pgxpool.New(ctx, a.cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	a.logger.Info("Database connection established")

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           api.NewRouter(database.New(dbpool), a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutdown signal received. Exiting.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) migrateCommand() *cobra.Command {
	var migrations string
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the run history schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireDB(); err != nil {
				return err
			}
			down := len(args) == 1 && args[0] == "down"
			if err := runMigrations(migrations, a.cfg.DBURL, down); err != nil {
				return fmt.Errorf("failed to run database migrations: %w", err)
			}
			a.logger.Info("Database migrations applied successfully", "down", down)
			return nil
		},
	}
	cmd.Flags().StringVar(&migrations, "migrations", defaultMigrations, "migration source url")
	return cmd
}

func runMigrations(source, dbURL string, down bool) error {
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
