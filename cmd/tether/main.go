// Command tether runs the protocol adapter gateway. It exposes the
// connection registry over HTTP and bridges MQTT, Kafka and REST
// endpoints behind a uniform adapter API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/internal/server"
	"github.com/ajitpratap0/tether/pkg/adapter/kafka"
	"github.com/ajitpratap0/tether/pkg/adapter/mqtt"
	"github.com/ajitpratap0/tether/pkg/adapter/rest"
	"github.com/ajitpratap0/tether/pkg/config"
	"github.com/ajitpratap0/tether/pkg/docindex"
	"github.com/ajitpratap0/tether/pkg/logger"
	"github.com/ajitpratap0/tether/pkg/registry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "tether",
		Short: "Tether - Uniform gateway for heterogeneous communication protocols",
		Long: `Tether bridges MQTT brokers, Kafka clusters and REST/WebSocket endpoints
behind a single connection API with retry handling, live payload sampling
and per-connection metrics.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tether v%s\n", server.Version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available adapter types",
		Run: func(cmd *cobra.Command, args []string) {
			reg := registry.New()
			registerFactories(reg)
			fmt.Println("Available adapter types:")
			for _, name := range reg.Types() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	var configFile string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(configFile)
		},
	}
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func registerFactories(reg *registry.Registry) {
	_ = reg.RegisterFactory(mqtt.TransportName, mqtt.New)
	_ = reg.RegisterFactory(kafka.TransportName, kafka.New)
	_ = reg.RegisterFactory(rest.TransportName, rest.New)
}

func loadSettings(configFile string) (*config.Settings, error) {
	if configFile == "" {
		settings := config.Default()
		settings.ApplyEnv()
		return settings, nil
	}
	settings, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv()
	return settings, nil
}

func runServer(configFile string) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:    settings.Logging.Level,
		Encoding: settings.Logging.Encoding,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	reg := registry.New()
	registerFactories(reg)

	var docs *docindex.Index
	if settings.Docs.Enabled {
		docs = docindex.New(log)
		if err := docs.LoadDir(settings.Docs.Dir); err != nil {
			log.Warn("documentation index unavailable",
				zap.String("dir", settings.Docs.Dir), zap.Error(err))
		}
	}

	srv := server.New(settings, reg, docs, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", zap.Error(err))
	}
	reg.Cleanup(shutdownCtx)
	log.Info("shutdown complete")
	return nil
}
