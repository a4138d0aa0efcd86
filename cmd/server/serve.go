package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"covid-dashboard/internal/api"
	"covid-dashboard/internal/engine"
	"covid-dashboard/internal/observability"
)

var (
	flagAddr    string
	flagDataDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the dataset in the background and serve the dashboard",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides http_addr)")
	serveCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "directory holding the CSV files (overrides data_dir)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") && flagAddr != "" {
		cfg.HTTPAddr = flagAddr
	}
	if cmd.Flags().Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// The server starts with no data and answers 503 until the load finishes.
	h := api.NewHandler(nil, api.Options{
		Logger:      logger,
		Metrics:     metrics,
		Clock:       clock,
		ChartWidth:  cfg.ChartWidth,
		ChartHeight: cfg.ChartHeight,
	})
	e := api.NewServer(h, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		start := clock.Now()
		ds, err := engine.Load(cfg.DataDir, cfg.Files, logger)
		if err != nil {
			logger.Fatal("dataset load failed", zap.String("data_dir", cfg.DataDir), zap.Error(err))
		}
		metrics.DatasetLoadSeconds.Set(clock.Since(start).Seconds())
		h.SetData(ds)
		logger.Info("dashboard ready", zap.Duration("elapsed", clock.Since(start)))
	}()

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
