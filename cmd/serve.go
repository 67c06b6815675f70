package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shipmonitor/config"
	"shipmonitor/dataset"
	"shipmonitor/db"
	qhttp "shipmonitor/http"
	"shipmonitor/ml"
	"shipmonitor/monitoring"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP server",
	Long: `Start the dashboard. The reference dataset is loaded at startup and the
command fails if it cannot be read. The model artifact is resolved on the first
prediction, from model.path and then the remote repository.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP port")
}

func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dataset.Configure(cfg.Dataset.Path, dataset.Options{Encoding: cfg.Dataset.Encoding})
	ds, err := dataset.Global()
	if err != nil {
		logger.Error("failed to load dataset", zap.String("path", cfg.Dataset.Path), zap.Error(err))
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("path", ds.Source()), zap.Int("rows", ds.Rows()))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open prediction log: %w", err)
	}
	defer store.Close()
	logger.Info("prediction log opened", zap.String("path", cfg.Database.Path))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	hub := monitoring.NewHub(logger, metrics)
	go hub.Run(ctx)

	chain := newChain(cfg, logger)
	chain.Observe(metrics.ObserveArtifact)
	ml.ConfigureModel(chain)
	logger.Info("model resolves lazily", zap.Strings("providers", chain.Providers()))

	qhttp.SetLogger(logger)
	qhttp.SetMetrics(metrics)
	qhttp.SetStore(store)
	qhttp.SetHub(hub)
	qhttp.SetChartCacheSize(cfg.Charts.CacheSize)

	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		Gatherer:       registry,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
	}
	logger.Info("exiting")
	return nil
}
