package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/availprobe/internal/alert"
	"github.com/hazz-dev/availprobe/internal/config"
	"github.com/hazz-dev/availprobe/internal/dashboard"
	"github.com/hazz-dev/availprobe/internal/metrics"
	"github.com/hazz-dev/availprobe/internal/probe"
	"github.com/hazz-dev/availprobe/internal/scheduler"
	"github.com/hazz-dev/availprobe/internal/server"
	"github.com/hazz-dev/availprobe/internal/smoke"
	"github.com/hazz-dev/availprobe/internal/storage"
	"github.com/hazz-dev/availprobe/internal/version"
)

var (
	cfgFile    string
	targetFlag string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "availprobe",
		Short:        "Smoke and load testing toolkit for the ws-availability service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "availprobe.yml", "config file path")
	root.PersistentFlags().StringVar(&targetFlag, "target", "", "service base URL (overrides config)")

	root.AddCommand(versionCmd())
	root.AddCommand(smokeCmd())
	root.AddCommand(benchCmd())
	root.AddCommand(loadCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(historyCmd())

	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if targetFlag != "" {
		cfg.Target = targetFlag
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("availprobe %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func smokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoke",
		Short: "Run the six-scenario smoke suite once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return executeSmoke(cmd, cfg)
		},
	}
}

func benchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Repeat the configured query and report latency statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return executeBench(cmd, cfg)
		},
	}
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Drive weighted random traffic with simulated users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return executeLoad(cmd, cfg)
		},
	}
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print recent run history from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := storage.Open(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			return executeHistory(cmd, db)
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the smoke suite at the configured interval",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sched := newWatcher(cfg, db, nil, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sched.Start(ctx)
	logger.Info("watching", "target", cfg.Target, "interval", cfg.Watch.Interval.Duration)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	sched.Wait()
	return nil
}

// newWatcher wires the smoke suite, storage, alerting, and optional metrics
// into a scheduler.
func newWatcher(cfg *config.Config, db *storage.DB, m *metrics.Metrics, logger *slog.Logger) *scheduler.Scheduler {
	var alerter *alert.Alerter
	if cfg.Alerts.Webhook.URL != "" {
		alerter = alert.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
	}

	run := func(ctx context.Context) error {
		client := probe.New(cfg.Target, cfg.Timeout.Duration)
		suite := smoke.New(client, logger)

		f, err := smoke.OpenResults(cfg.ResultsFile)
		if err != nil {
			return err
		}
		defer f.Close()

		outcome, runErr := suite.Run(ctx, f)
		recordSmoke(ctx, db, outcome, runErr == nil, logger)

		if m != nil {
			observeSmoke(m, outcome, runErr == nil)
		}
		if alerter != nil {
			notifySmoke(alerter, outcome, runErr, cfg.Alerts.SlowThreshold.Duration)
		}
		return runErr
	}

	return scheduler.New(cfg.Watch.Interval.Duration, run, logger)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve run history and metrics, watching the service in the background",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	sched := newWatcher(cfg, db, m, logger)
	apiServer := server.New(db, cfg.Target, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Router())
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", dashboard.Handler())

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sched.Start(ctx)
	logger.Info("watcher started", "target", cfg.Target, "interval", cfg.Watch.Interval.Duration)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
