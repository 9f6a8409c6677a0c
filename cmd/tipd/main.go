package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/plebbit/plebbit-tipping-v1/config"
	"github.com/plebbit/plebbit-tipping-v1/core"
	"github.com/plebbit/plebbit-tipping-v1/observability/logging"
	telemetry "github.com/plebbit/plebbit-tipping-v1/observability/otel"
	"github.com/plebbit/plebbit-tipping-v1/rpc"
	"github.com/plebbit/plebbit-tipping-v1/rpc/modules"
	"github.com/plebbit/plebbit-tipping-v1/services/indexer"
	"github.com/plebbit/plebbit-tipping-v1/storage"
)

const serviceName = "tipd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "tipd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("TIPD_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup(serviceName, env, cfg.Log.Level, logging.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	gen, err := cfg.ResolveGenesis()
	if err != nil {
		return fmt.Errorf("resolve genesis: %w", err)
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithStreamHistory(cfg.Stream.HistoryLimit),
	}

	var activity modules.ActivitySource
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		ix, err := indexer.Open(dsn, indexer.WithQueueSize(cfg.Indexer.QueueSize), indexer.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := ix.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("indexer stopped", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			stop()
			<-done
			if err := ix.Close(); err != nil {
				logger.Warn("indexer close failed", slog.String("error", err.Error()))
			}
		}()
		opts = append(opts, core.WithEmitter(ix))
		activity = ix
		logger.Info("activity indexer enabled", logging.MaskField("dsn", logging.MaskDSN(dsn)))
	}

	node, err := core.NewNode(db, gen, opts...)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if _, err := node.Params(); err != nil {
		return fmt.Errorf("ledger not initialised, configure a genesis: %w", err)
	}

	server := rpc.NewServer(node, rpc.ServerConfig{
		Auth: rpc.AuthConfig{
			HMACSecret: cfg.HMACSecretValue(),
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.LeewaySecs) * time.Second,
		},
		RateLimit: rpc.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Activity: activity,
		Logger:   logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.RPCReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.RPCIdleTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown rpc server: %w", err)
	}
	return nil
}
