package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"nimbus-hq/ganymede/pkg/archive"
	"nimbus-hq/ganymede/pkg/config"
	"nimbus-hq/ganymede/pkg/model"
	"nimbus-hq/ganymede/pkg/orchestrator"
	"nimbus-hq/ganymede/pkg/server"
	"nimbus-hq/ganymede/pkg/stream"
	"nimbus-hq/ganymede/pkg/telemetry/logging"
	"nimbus-hq/ganymede/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Ganymede pipeline",
	Long: `Start the Ganymede pipeline with the specified configuration.

The process builds the admission controller, stream executor, metrics
engine and trace archive from configuration, then serves the
observability endpoints until interrupted.

Examples:
  # Start with default config
  ganymede run

  # Start with custom config
  ganymede run --config /etc/ganymede/config.yaml

  # Override listen address
  ganymede run --listen 0.0.0.0:8091

  # Validate config without starting
  ganymede run --dry-run`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

// loadConfig loads the configuration file, falling back to defaults when
// the default path does not exist and no explicit --config was given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Metrics engine with Prometheus export.
	var registry *prometheus.Registry
	if cfg.Telemetry.Metrics.Enabled == nil || *cfg.Telemetry.Metrics.Enabled {
		registry = prometheus.NewRegistry()
	}
	engine := metrics.NewEngine(cfg.Telemetry.Metrics, registry)

	// Trace archive and retention.
	var store *archive.Store
	if cfg.Archive.Enabled == nil || *cfg.Archive.Enabled {
		store, err = archive.Open(cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to open trace archive: %w", err)
		}
		defer store.Close()
		engine.SetTraceSink(store.Sink())

		retention := archive.NewRetention(store, cfg.Archive)
		if err := retention.Start(); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer retention.Stop()
		}
		fmt.Printf("✓ Trace archive initialized (%s)\n", cfg.Archive.Path)
	}

	// Model client pool. Without a configured backend the pipeline runs
	// on loopback clients so every stage is exercisable locally.
	slog.Warn("no model backend configured, using loopback clients")
	pool, err := model.NewPoolWithFactory(cfg.Agents.PoolSize, func(i int) model.Client {
		return model.NewLoopbackClient(fmt.Sprintf("loopback-%d", i), 20*time.Millisecond)
	})
	if err != nil {
		return fmt.Errorf("failed to build client pool: %w", err)
	}
	fmt.Printf("✓ Client pool initialized (%d handles)\n", pool.Size())

	executor := stream.NewExecutor(cfg.Stream, pool, engine)
	manager := orchestrator.NewManager(cfg, executor, engine, store, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background loops: rolling aggregation and rate-limit sweeping.
	go engine.Run(ctx)
	go manager.Controller().Run(ctx)

	// Hot-reload alert thresholds when the config file changes.
	if _, statErr := os.Stat(cfgFile); statErr == nil {
		watcher, werr := config.NewWatcher(cfgFile, 0, nil)
		if werr != nil {
			slog.Warn("failed to create config watcher", "error", werr)
		} else {
			go func() {
				if werr := watcher.Watch(ctx, func(next *config.Config) {
					engine.SetThresholds(next.Telemetry.Metrics.Alerts)
					slog.Info("alert thresholds reloaded")
				}); werr != nil {
					slog.Warn("config watcher stopped", "error", werr)
				}
			}()
		}
	}

	srv := server.NewServer(cfg.Server, manager, registry)
	fmt.Printf("✓ Observability server on http://%s (healthz, readyz, metrics)\n", cfg.Server.ListenAddress)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}
