package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/adapters/httpapi"
	"github.com/phishfinder/backend/internal/application"
	"github.com/phishfinder/backend/internal/config"
	"github.com/phishfinder/backend/internal/di"
	"github.com/phishfinder/backend/internal/ports"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		container, err := di.BuildContainer(cfg)
		if err != nil {
			return err
		}
		return container.Invoke(serve)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serve gets all dependencies injected and blocks until SIGINT or SIGTERM
func serve(
	cfg *config.Config,
	logger *zap.Logger,
	server *httpapi.Server,
	backfill *application.BackfillService,
	store ports.Storage,
	c ports.Cache,
) error {
	defer logger.Sync()
	defer store.Close()
	defer c.Stop()

	serverCfg, err := cfg.GetServer()
	if err != nil {
		return err
	}
	jobsCfg, err := cfg.GetJobs()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if jobsCfg.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Starting backfill job", zap.Duration("interval", jobsCfg.Interval))
			backfill.Run(ctx, jobsCfg.Interval)
		}()
	}

	httpServer := &http.Server{
		Addr:              serverCfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("address", serverCfg.ListenAddress),
			zap.String("environment", serverCfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	wg.Wait()

	logger.Info("Shutdown complete")
	return nil
}
