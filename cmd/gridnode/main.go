package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/opsched/internal/config"
	"github.com/me/opsched/internal/gridhandlers"
	"github.com/me/opsched/internal/gridhandlers/kvsqlite"
	"github.com/me/opsched/internal/logging"
	"github.com/me/opsched/internal/opsched"
	"github.com/me/opsched/internal/server"
)

func main() {
	cfg := config.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.IntVar(&cfg.PartitionCount, "partitions", cfg.PartitionCount, "Number of partitions")
	flag.IntVar(&cfg.PartitionOperationThreadCount, "partition-threads", cfg.PartitionOperationThreadCount, "Partition worker thread count (0 = auto)")
	flag.IntVar(&cfg.GenericOperationThreadCount, "generic-threads", cfg.GenericOperationThreadCount, "Generic worker thread count (0 = auto)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite base directory for persistent partition handlers (empty disables persistence)")
	configFile := flag.String("config", "", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *configFile != "" {
		fileCfg, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	var factory opsched.OperationHandlerFactory
	var closeFactory func() error
	if cfg.DBPath != "" {
		f := kvsqlite.NewFactory(cfg.DBPath, logger)
		factory = f
		closeFactory = f.Close
		logger.Info("persistent partition handlers enabled", "db_path", cfg.DBPath)
	} else {
		factory = gridhandlers.NewFactory(logger)
	}

	sched, err := opsched.NewScheduler(opsched.Config{
		PartitionCount:                cfg.PartitionCount,
		PartitionOperationThreadCount: cfg.PartitionOperationThreadCount,
		GenericOperationThreadCount:   cfg.GenericOperationThreadCount,
	}, factory, gridhandlers.NewResponseHandler(logger), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create scheduler: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg, sched, logger)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("grid node starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "http shutdown error: %v\n", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "scheduler shutdown error: %v\n", err)
	}
	if closeFactory != nil {
		if err := closeFactory(); err != nil {
			fmt.Fprintf(os.Stderr, "close handler databases: %v\n", err)
		}
	}
	logger.Info("grid node stopped")
}
