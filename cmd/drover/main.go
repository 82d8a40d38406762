package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rangeworks/drover/pkg/config"
	"github.com/rangeworks/drover/pkg/controlplane"
	"github.com/rangeworks/drover/pkg/credentials"
	"github.com/rangeworks/drover/pkg/health"
	"github.com/rangeworks/drover/pkg/log"
	"github.com/rangeworks/drover/pkg/metrics"
	"github.com/rangeworks/drover/pkg/storage"
	"github.com/rangeworks/drover/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "drover",
	Short: "Drover - fleet worker agent",
	Long: `Drover is the on-host agent for a remote job-scheduling fleet.

It registers the host as a worker, heartbeats session state to the
control plane, and executes assigned sessions under isolated OS
identities.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Drover version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	runCmd.Flags().String("fleet-id", "", "Fleet to register this worker in")
	runCmd.Flags().String("region", "", "Control plane region")
	runCmd.Flags().String("endpoint", "", "Control plane endpoint URL")
	runCmd.Flags().String("config", "", "Path to YAML configuration file")
	runCmd.Flags().String("worker-dir", "", "Agent state directory")
	runCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address (empty disables)")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the worker agent",
	Long: `Run the worker agent until interrupted.

Configuration is resolved from built-in defaults, the optional YAML file
given with --config, and command-line flags, in that order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		// Flags override the file only when set.
		if cmd.Flags().Changed("fleet-id") {
			cfg.FleetID, _ = cmd.Flags().GetString("fleet-id")
		}
		if cmd.Flags().Changed("region") {
			cfg.Region, _ = cmd.Flags().GetString("region")
		}
		if cmd.Flags().Changed("endpoint") {
			cfg.Endpoint, _ = cmd.Flags().GetString("endpoint")
		}
		if cmd.Flags().Changed("worker-dir") {
			cfg.WorkerDir, _ = cmd.Flags().GetString("worker-dir")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("endpoint is required to run the agent")
		}

		return runAgent(cfg)
	},
}

func runAgent(cfg config.Config) error {
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.WorkerDir, 0700); err != nil {
		return fmt.Errorf("failed to create worker directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.WorkerDir)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	credStore := credentials.NewStore()
	provider, err := credentials.NewBootstrapProvider(ctx, credStore, cfg.Region)
	if err != nil {
		return fmt.Errorf("failed to build credential provider: %w", err)
	}

	client := controlplane.NewClient(controlplane.NewHTTPAPI(controlplane.HTTPAPIConfig{
		Endpoint:    cfg.Endpoint,
		Region:      cfg.Region,
		Credentials: provider,
	}))

	secretStore, err := credentials.NewSSMSecretStore(ctx, credStore, cfg.Region)
	if err != nil {
		return fmt.Errorf("failed to build secret store: %w", err)
	}
	users := credentials.NewJobUserResolver(secretStore)

	metrics.SetVersion(Version)
	metrics.RegisterComponent("controlplane", false, "not yet connected")
	metrics.RegisterComponent("credentials", false, "not yet refreshed")
	metrics.RegisterComponent("executor", false, "not yet started")
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.StartServer(cfg.MetricsAddr); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	checks := []health.Checker{
		health.NewExecChecker("shell", []string{"/bin/sh", "-c", "true"}),
		health.NewDiskChecker(cfg.WorkerDir),
	}
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Hostname() != "" {
		port := u.Port()
		if port == "" {
			port = "443"
		}
		checks = append(checks, health.NewTCPChecker("control-plane", net.JoinHostPort(u.Hostname(), port)))
	}

	w := worker.NewWorker(worker.Config{
		FleetID:           cfg.FleetID,
		DataDir:           cfg.WorkerDir,
		LogDir:            cfg.ResolvedLogDir(),
		Capabilities:      cfg.Capabilities.Build(),
		Checks:            checks,
		HeartbeatInterval: cfg.HeartbeatInterval.Std(),
		SessionWorkers:    cfg.SessionWorkers,
		JournalKeep:       cfg.JournalKeep,
	}, client, store, users)

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := w.Start(startCtx); err != nil {
		return err
	}

	reg := w.Registration()
	refresher := credentials.NewRefresher(credStore, client, reg.FleetID, reg.WorkerID)
	if err := refresher.RefreshNow(startCtx); err != nil {
		logger.Warn().Err(err).Msg("initial credential refresh failed, host credentials remain in use")
	}
	refresher.Start(ctx)

	logger.Info().
		Str("fleet_id", reg.FleetID).
		Str("worker_id", reg.WorkerID).
		Msg("agent is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer stopCancel()

	if err := w.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("worker shutdown failed")
	}
	refresher.Stop()

	logger.Info().Msg("shutdown complete")
	return nil
}
