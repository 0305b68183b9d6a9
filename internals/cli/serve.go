package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"healthmon/config"
	"healthmon/internals/app"
	"healthmon/internals/server"
	"healthmon/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor and its HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Done closes on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Init(cfg)
	log.Info().Msg("logger initialized")

	container, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return err
	}
	log.Info().Msg("dependencies initialized")

	if err := container.Start(ctx); err != nil {
		log.Error().Err(err).Msg("failed to start")
		_ = container.Shutdown(context.Background())
		return err
	}

	router := app.RegisterRoutes(container)
	srv := server.New(cfg.HTTP.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		container.Pruner.Run()
		return nil
	})
	g.Go(func() error {
		// a crashed server cancels gctx too
		<-gctx.Done()
		stop()
		log.Info().Msg("shutdown signal received")
		return srv.Shutdown(context.Background())
	})

	runErr := g.Wait()
	if runErr != nil {
		log.Error().Err(runErr).Msg("server stopped with error")
	}

	// buffer time to drain alerts and pending writes
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := container.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("dependencies shutdown failed")
	}

	log.Info().Msg("graceful shutdown complete")
	return runErr
}
