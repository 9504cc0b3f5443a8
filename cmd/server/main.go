// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/monitoring"
	"github.com/valpere/docnav/internal/utils"
)

// Version information (set by build flags)
var version = "dev"

func main() {
	configFile := flag.String("config", "", "configuration file (watched for changes)")
	listen := flag.String("listen", "", "listen address, overrides server.listen")
	flag.Parse()

	if err := run(*configFile, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, listen string) error {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var metrics *monitoring.MetricsManager
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetricsManager(monitoring.MetricsConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: true,
		})
	}

	srv := NewServer(cfg, browserOpener, metrics, logger)
	defer srv.Close()

	if configFile != "" {
		watcher, err := config.NewConfigWatcher(configFile, logger)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		defer watcher.Close()
		watcher.OnChange(func(next *config.Config) {
			next.Server.Listen = cfg.Server.Listen
			srv.ApplyConfig(next)
		})
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", cfg.Server.Listen), zap.Bool("metrics", metrics != nil))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
