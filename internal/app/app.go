// Package app wires the configured components together and runs the server.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/pvyield/internal/controllers/restserver"
	"github.com/chrissnell/pvyield/internal/managers"
	"github.com/chrissnell/pvyield/internal/observability"
	"github.com/chrissnell/pvyield/internal/yield"
	"github.com/chrissnell/pvyield/pkg/config"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     a.config.Tracing.Enabled,
		ServiceName: a.config.Tracing.ServiceName,
		Exporter:    a.config.Tracing.Exporter,
		Endpoint:    a.config.Tracing.Endpoint,
		SampleRatio: a.config.Tracing.SampleRatio,
	}, a.logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, a.logger)

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		return err
	}

	// Open the weather archive
	wm, err := managers.NewWeatherManager(ctx, a.config.Weather, a.logger)
	if err != nil {
		return err
	}
	defer wm.Close()

	calc, err := yield.NewCalculator(wm.Provider, yield.Config{
		Years:     a.config.Calculation.Years,
		UTCOffset: a.config.Calculation.UTCOffset(),
		Workers:   a.config.Calculation.Workers,
		ChunkSize: a.config.Calculation.ChunkSize,
		Losses:    a.config.Calculation.Losses,
	}, a.logger, metrics)
	if err != nil {
		return err
	}
	a.logger.Infof("system losses total %.4f%% over years %v", calc.Losses().Total(), calc.Years())

	rest, err := restserver.NewController(ctx, &wg, a.config.Server, calc, metrics, a.logger)
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	a.logger.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
