package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/vitality/internal/control"
	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/logging"
)

var (
	cfgPath   string
	isDebug   bool
	adminAddr string
)

var rootCmd = &cobra.Command{
	Use:   "vitality",
	Short: "Core Lightning node watchdog",
	Long: `Vitality periodically checks a Core Lightning node (channel health, expiring HTLCs,
network reachability) and notifies via telegram, email or redis when problems appear and resolve.`,
	Run: runWatcher,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&adminAddr, "addr", "", "admin server address (default http://localhost:<server.port>)")
}

func runWatcher(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	level := logging.ParseLevel(cfg.Logging.Level)
	if isDebug {
		level = slog.LevelDebug
	}
	if err := logging.Setup(level, cfg.Logging.File); err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = logging.Close()
	}()

	// Initialize Watcher
	app, err := control.NewWatcher(cfg)
	if err != nil {
		slog.Error("Failed to initialize Watcher", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start Watcher", "error", err)
		os.Exit(1)
	}

	slog.Info("Watcher running", "config", cfgPath, "port", cfg.Server.Port)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
