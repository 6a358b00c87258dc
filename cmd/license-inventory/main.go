package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-tangra/go-tangra-license-inventory/cmd/license-inventory/assets"
	"github.com/go-tangra/go-tangra-license-inventory/internal/config"
	"github.com/go-tangra/go-tangra-license-inventory/internal/observability"
	"github.com/go-tangra/go-tangra-license-inventory/internal/server"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "license-inventory",
	Short: "License Inventory - tracks third-party components, their licenses and the files they cover",
	Long: `License Inventory stores declarations of third-party components found in a
codebase, binds each to a license and records which source files belong to it.

Run without a subcommand to start the daemon (equivalent to 'serve').
The inventory, license and component subcommands talk to a running daemon over gRPC.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC and HTTP daemon",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("license-inventory %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/license-inventory.yaml)")
	rootCmd.PersistentFlags().String("listen", "", "gRPC listen address (default :9560)")
	rootCmd.PersistentFlags().String("http-listen", "", "HTTP listen address (default :9561)")
	rootCmd.PersistentFlags().String("database", "", "SQLite database path (default license-inventory.db)")
	rootCmd.PersistentFlags().String("client-secret", "", "secret for gRPC clients (empty = no auth)")
	rootCmd.PersistentFlags().String("api-secret", "", "secret for REST API clients (empty = no auth)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	addClientCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Listen = v
	}
	if v, _ := cmd.Flags().GetString("http-listen"); v != "" {
		cfg.HTTPListen = v
	}
	if v, _ := cmd.Flags().GetString("database"); v != "" {
		cfg.DatabasePath = v
	}
	if v, _ := cmd.Flags().GetString("client-secret"); v != "" {
		cfg.ClientSecret = v
	}
	if v, _ := cmd.Flags().GetString("api-secret"); v != "" {
		cfg.ApiSecret = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Shut down on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupTracing(ctx, cfg.OtelEndpoint, version, cfg.OtelInsecure)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting license-inventory",
		zap.String("version", version),
		zap.String("commit", commitHash))

	return server.Run(ctx, cfg, assets.OpenApiData, logger)
}
