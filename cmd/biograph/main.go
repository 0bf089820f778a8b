// Package main implements the entry point for the BioGraph query engine, a
// federated biomedical knowledge-graph TRAPI service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/biograph/config"
	"github.com/c360/biograph/engine"
	"github.com/c360/biograph/gateway"
	"github.com/c360/biograph/health"
	"github.com/c360/biograph/metakg"
	"github.com/c360/biograph/metric"
	"github.com/c360/biograph/resolver"
	"github.com/c360/biograph/storage/redisstore"
	"github.com/c360/biograph/transport"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "biograph"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr         = flag.String("addr", ":3000", "gateway listen address")
		metakgPath   = flag.String("metakg", "metakg.yaml", "path to the MetaKG operation list")
		recordsPath  = flag.String("records", "", "path to the record identity configuration")
		resolverURL  = flag.String("resolver", "", "identifier-resolution service endpoint")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
		printVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *printVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.LoadRecordConfig(*recordsPath); err != nil {
		return err
	}

	catalog, err := metakg.LoadCatalog(*metakgPath)
	if err != nil {
		return err
	}
	logger.Info("metakg loaded", "operations", catalog.Size(), "apis", len(catalog.APIIdentifiers()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewRegistry()
	metrics := metric.NewMetrics()
	metrics.Register(registry)
	monitor := health.NewMonitor()

	// The cache is active only when the operator left it enabled and an
	// endpoint is configured.
	cacheDeps := engine.CacheHandlerDeps{
		Catalog:   catalog,
		Enabled:   false,
		TTL:       cfg.Cache.TTL(),
		ChunkSize: cfg.Cache.ChunkSize,
		Logger:    logger,
		Metrics:   metrics,
	}
	if cfg.Cache.Active() {
		store := redisstore.New(cfg.Cache.Addr())
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			logger.Warn("cache backend unreachable, caching disabled", "addr", cfg.Cache.Addr(), "error", err)
			monitor.Report("cache", health.StateDegraded, "backend unreachable")
		} else {
			cacheDeps.Backend = store
			cacheDeps.Locker = store
			cacheDeps.Enabled = true
			monitor.Report("cache", health.StateHealthy, "")
		}
	} else {
		logger.Info("result caching disabled")
	}

	var res resolver.Resolver = resolver.Passthrough{}
	if *resolverURL != "" {
		res = resolver.NewMemoized(ctx,
			transport.NewResolverClient(*resolverURL, cfg.API.Timeout),
			10*time.Minute, logger)
	}

	handler, err := engine.NewQueryHandler(engine.QueryHandlerDeps{
		Catalog:  catalog,
		Resolver: res,
		Client:   transport.NewTRAPIClient(cfg.API.Timeout),
		Cache:    engine.NewCacheHandler(cacheDeps),
		Dumper:   engine.NewRecordDumper(ctx, cfg.Dump, logger),
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	gw := gateway.New(gateway.GatewayDeps{
		Handler:  handler,
		Monitor:  monitor,
		Registry: registry,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", *addr, "version", Version)
		errCh <- gw.Start(*addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return gw.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
