package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stigmer/stigmer/config"
	"github.com/stigmer/stigmer/pkg/api"
	"github.com/stigmer/stigmer/pkg/api/handlers"
	"github.com/stigmer/stigmer/pkg/board"
	"github.com/stigmer/stigmer/pkg/logger"
	"github.com/stigmer/stigmer/pkg/metrics"
	"github.com/stigmer/stigmer/pkg/storage"
	"github.com/stigmer/stigmer/pkg/storage/badger"
	"github.com/stigmer/stigmer/pkg/storage/file"
	"github.com/stigmer/stigmer/pkg/storage/memory"
	"github.com/stigmer/stigmer/pkg/telemetry/tracing"
	"github.com/stigmer/stigmer/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Stigmer",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("Error shutting down tracing", "error", err)
		}
	}()

	// Initialize the signal store
	var store storage.Store
	switch cfg.Storage.Type {
	case "file":
		store, err = file.NewFileStore(&file.Config{
			Path:              cfg.Storage.File.Path,
			LockTimeout:       cfg.Storage.File.LockTimeout,
			LockRetryInterval: cfg.Storage.File.LockRetryInterval,
		})
		if err != nil {
			log.Error("Failed to open file store", "error", err, "path", cfg.Storage.File.Path)
			os.Exit(1)
		}
		log.Info("Initialized file store", "path", cfg.Storage.File.Path)
	case "badger":
		store, err = badger.NewBadgerStore(&badger.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
		})
		if err != nil {
			log.Error("Failed to open Badger store", "error", err, "path", cfg.Storage.Badger.Path)
			os.Exit(1)
		}
		log.Info("Initialized Badger store", "path", cfg.Storage.Badger.Path)
	case "memory":
		store = memory.NewMemoryStore()
		log.Info("Initialized memory store")
	default:
		store = memory.NewMemoryStore()
		log.Warn("Unknown storage type, using memory store", "type", cfg.Storage.Type)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing store", "error", err)
		}
	}()

	// Initialize metrics manager
	metricsCfg := metrics.Config{
		Enabled:             cfg.Metrics.Enabled,
		Port:                cfg.Metrics.Port,
		Path:                cfg.Metrics.Path,
		EvaporationBuckets:  metrics.DefaultConfig().EvaporationBuckets,
		HTTPDurationBuckets: metrics.DefaultConfig().HTTPDurationBuckets,
	}
	metricsManager := metrics.NewManager(metricsCfg)

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Build the coordination board over the store.
	b := board.New(store,
		board.WithDecay(cfg.Board.HalfLifeHours, cfg.Board.DetectionThreshold),
		board.WithAmplifyDelta(cfg.Board.AmplifyDelta),
		board.WithLogger(log),
		board.WithMetrics(metricsManager),
	)

	// Start the background evaporation loop if configured.
	if cfg.Board.EvaporationInterval > 0 {
		b.StartEvaporationLoop(ctx, cfg.Board.EvaporationInterval)
		defer b.StopEvaporationLoop()
		log.Info("Started evaporation loop", "interval", cfg.Board.EvaporationInterval)
	}

	// Initialize HTTP server with handlers
	apiHandlers := &api.Handlers{
		Board:   handlers.NewBoardHandler(b, log),
		Health:  handlers.NewHealthHandler(b),
		Metrics: metricsManager,
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Stigmer is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
		"half_life_hours", cfg.Board.HalfLifeHours,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Stigmer stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Stigmer - Pheromone Coordination Board\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Stigmer - Shared coordination board for multi-agent systems\n\n")
	fmt.Printf("Usage: stigmer [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  stigmer                                   # Run with default config\n")
	fmt.Printf("  stigmer -config config.yaml               # Use specific config file\n")
	fmt.Printf("  stigmer -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  stigmer -version                          # Print version info\n")
}
