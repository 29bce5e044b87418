package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lightsgoout/exchange-engine/internal/config"
	"github.com/lightsgoout/exchange-engine/internal/latency"
	"github.com/lightsgoout/exchange-engine/internal/topofbook"
	"github.com/lightsgoout/exchange-engine/internal/transport"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the matching engine, admission transport, metrics, and top-of-book websocket feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/exchange.yaml", "path to the YAML configuration file")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	sys, err := buildSystem(cfg, logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	reg := prometheus.NewRegistry()
	exporter := latency.NewExporter(sys.monitor, reg)
	exporter.Refresh()

	wsHub := topofbook.NewWebsocketHub(sys.publisher, logger)

	metricsMux := http.NewServeMux()
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	var refreshMu sync.Mutex
	metricsMux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshMu.Lock()
		exporter.Refresh()
		refreshMu.Unlock()
		metricsHandler.ServeHTTP(w, r)
	}))
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}

	wsMux := http.NewServeMux()
	wsMux.Handle("/topofbook", wsHub)
	wsServer := &http.Server{Addr: cfg.Server.TopOfBookWSAddr, Handler: wsMux}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("top-of-book websocket server listening", zap.String("addr", cfg.Server.TopOfBookWSAddr))
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("websocket server stopped", zap.Error(err))
		}
	}()

	admissionServer := transport.NewServer(sys.coord, logger)
	admissionErrs := make(chan error, 1)
	go func() {
		admissionErrs <- admissionServer.ListenAndServe(":7070")
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-admissionErrs:
		logger.Error("admission transport stopped", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = metricsServer.Shutdown(ctx)
	_ = wsServer.Shutdown(ctx)
	return nil
}
