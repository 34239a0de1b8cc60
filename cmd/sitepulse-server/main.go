package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/samijaber1/sitepulse/internal/api"
	"github.com/samijaber1/sitepulse/internal/config"
	"github.com/samijaber1/sitepulse/internal/metrics"
	"github.com/samijaber1/sitepulse/internal/settings"
	"github.com/samijaber1/sitepulse/internal/storage"
	"github.com/samijaber1/sitepulse/internal/storage/memory"
	"github.com/samijaber1/sitepulse/internal/storage/sqlite"
)

func main() {
	// Parse environment, then flags
	cfg, err := parseConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting SitePulse server...")
	log.Printf("Config: port=%d, settings=%s, db=%q, metrics=%t", cfg.Port, cfg.SettingsPath, cfg.DBPath, cfg.MetricsEnabled)

	// Validate and load dashboard settings
	validator, err := settings.NewValidator()
	if err != nil {
		log.Fatalf("Failed to initialize settings validator: %v", err)
	}
	if errs := validator.ValidateFile(cfg.SettingsPath); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("  %v", e)
		}
		log.Fatalf("Settings file %s is invalid (%d error(s))", cfg.SettingsPath, len(errs))
	}
	dashboard, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	// Open trend and refresh audit storage
	store, err := openStorage(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	// Create scheduler
	sched, err := dashboard.NewScheduler(filepath.Dir(cfg.SettingsPath), store)
	if err != nil {
		log.Fatalf("Failed to build scheduler: %v", err)
	}
	sched.SetAuditStorage(store)

	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sched.SetMetrics(metrics.New(registry))
		gatherer = registry
	}

	// Start scheduler; the first refresh runs in the background
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(sched, addr, gatherer)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		sched.Stop()
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		log.Println("Shutting down server...")
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}

		log.Println("Stopping scheduler...")
		sched.Stop()

		log.Println("Shutdown complete")
	}
}

func parseConfig() (config.Config, error) {
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.SettingsPath, "config", cfg.SettingsPath, "Dashboard settings YAML file")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite file for trend history (empty keeps it in memory)")
	flag.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "Expose Prometheus metrics on /metrics")
	flag.DurationVar(&cfg.GracefulShutdownTimeout, "shutdown-timeout", cfg.GracefulShutdownTimeout, "Graceful shutdown timeout")

	flag.Parse()

	return cfg, nil
}

func openStorage(dbPath string) (storage.Storage, error) {
	if dbPath == "" {
		log.Printf("Using in-memory trend storage")
		return memory.NewStore(), nil
	}
	log.Printf("Using SQLite trend storage: %s", dbPath)
	return sqlite.NewStore(dbPath)
}
