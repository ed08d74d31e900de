package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/example/atomsched/internal/config"
	"github.com/example/atomsched/internal/logging"
	"github.com/example/atomsched/internal/registry"
	"github.com/example/atomsched/internal/scheduler"
	"github.com/example/atomsched/internal/server"
	"github.com/example/atomsched/internal/store"

	_ "github.com/example/atomsched/pkg/model/cpubackend"
	_ "github.com/example/atomsched/pkg/model/scriptbackend"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Audit log database path (default ~/.atomsched/atomsched.db)")
	flag.IntVar(&cfg.NumWorkers, "workers", cfg.NumWorkers, "Number of scheduler worker goroutines")
	flag.IntVar(&cfg.MaxQueueSize, "max-queue-size", cfg.MaxQueueSize, "Maximum number of ready tasks queued at once")
	flag.DurationVar(&cfg.TaskTimeout, "task-timeout", cfg.TaskTimeout, "Per-task inference timeout")
	flag.DurationVar(&cfg.Retention, "retention", cfg.Retention, "How long to retain terminal task results in memory")
	flag.BoolVar(&cfg.EnableProfiling, "enable-profiling", cfg.EnableProfiling, "Expose net/http/pprof endpoints under /debug/pprof")
	configFile := flag.String("config", "", "Path to a YAML config file")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	cfg, err := config.LoadFile(cfg, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	// Parse again so flags given on the command line override the file.
	flag.Parse()
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".atomsched")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "atomsched.db")
	}

	audit, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer audit.Close()

	if err := audit.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("audit database ready", "path", dbPath)

	reg := registry.New()
	logger.Info("builtin model factories registered", "keys", []string{"cpu", "script"})

	schedCfg := scheduler.Config{
		NumWorkers:      cfg.NumWorkers,
		QueueCapacity:   cfg.MaxQueueSize,
		TaskTimeout:     cfg.TaskTimeout,
		Retention:       cfg.Retention,
		ReapInterval:    time.Minute,
		StopGracePeriod: 5 * time.Second,
	}
	sched := scheduler.New(schedCfg, reg, logger)

	srv := server.New(cfg, sched, logger, server.WithAuditStore(audit))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := sched.Stop(); err != nil {
		logger.Error("scheduler stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
