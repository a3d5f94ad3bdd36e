package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gotune/internal/config"
	"github.com/3leaps/gotune/internal/observability"
	"github.com/3leaps/gotune/internal/server"
	"github.com/3leaps/gotune/internal/server/handlers"
	"github.com/3leaps/gotune/internal/server/metrics"
	"github.com/3leaps/gotune/pkg/registry"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the model registry over HTTP",
	Long: `Start a read-only HTTP API over the model registry.

Endpoints:
  GET /health, /health/live, /health/ready
  GET /version
  GET /metrics
  GET /v1/models
  GET /v1/models/{name}

Examples:
  gotune serve
  gotune serve --host 0.0.0.0 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

// registryHealthChecker fails when the registry file cannot be parsed.
type registryHealthChecker struct {
	store *registry.Store
}

func (c registryHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := c.store.List()
	return err
}

// dataDirHealthChecker fails when the data directory is missing.
type dataDirHealthChecker struct {
	dir string
}

func (c dataDirHealthChecker) CheckHealth(ctx context.Context) error {
	info, err := os.Stat(c.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", c.dir)
	}
	return nil
}

func newServer(cfg *config.Config, logger *zap.Logger) *server.Server {
	host, port := cfg.Server.Host, cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}

	store := registry.NewStore(cfg.RegistryPath)
	health := handlers.InitHealthManager(versionInfo.Version)
	health.RegisterChecker("registry", registryHealthChecker{store: store})
	health.RegisterChecker("data_dir", dataDirHealthChecker{dir: cfg.DataDir})

	collector := metrics.New()
	collector.RegisterModelCount(func() float64 {
		entries, err := store.List()
		if err != nil {
			return -1
		}
		return float64(len(entries))
	})

	return server.New(host, port,
		server.WithModels(store),
		server.WithMetrics(collector),
		server.WithLogger(logger),
		server.WithTimeouts(server.Timeouts{
			Read:     cfg.Server.ReadTimeout,
			Write:    cfg.Server.WriteTimeout,
			Idle:     cfg.Server.IdleTimeout,
			Shutdown: cfg.Server.ShutdownTimeout,
		}),
		server.WithVersion(handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		}),
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return exitError(exitConfigError, "Failed to load configuration", err)
	}
	if servePort < 0 || servePort > 65535 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --port value", fmt.Errorf("port %d out of range", servePort))
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create data directory", err)
	}

	logger := observability.NewLogger("gotune.server", cfg.Logging.Level, cfg.Logging.Profile).
		With(zap.String("run_id", runID))
	srv := newServer(cfg, logger)

	observability.CLILogger.Info("Starting server", zap.String("addr", srv.Addr()))
	if err := srv.ListenAndServe(ctx); err != nil {
		observability.CLILogger.Error("Server failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}
