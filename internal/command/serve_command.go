package command

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/auth"
	"github.com/SystemBuilders/MigrationLock/internal/config"
	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/node"
	"github.com/SystemBuilders/MigrationLock/internal/routing"
	"github.com/SystemBuilders/MigrationLock/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "config.yaml"

func newServeCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the migration lock service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Logger.Level, os.Stdout)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", defaultConfigFile, "configuration file path")
	return cmd
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), nil
}

// serve runs the service until ctx is done.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	rep, err := storage.New(cfg.Storage, log)
	if err != nil {
		return err
	}
	if err := rep.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rep.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("failed to stop storage")
		}
	}()

	resolver := auth.NewJWTResolver(cfg.Auth)
	ls := lockservice.NewService(rep, resolver, log)
	ds := migrationdata.NewService(rep, resolver, log)

	router := routing.SetupRouting(ls, ds, log, mux.NewRouter())
	return node.Start(ctx, cfg.HTTP, router, log)
}
