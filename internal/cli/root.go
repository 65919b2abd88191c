package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/docketbench/internal/control"
	"github.com/vietddude/docketbench/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "docketbench",
	Short: "Docketbench retrieval benchmark",
	Long:  `Docketbench runs a dataset of Chapter 11 deals through search, evaluation and document fetch, then scores the outcomes against ground truth.`,
	Run:   runBench,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(reportCmd)
}

func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runBench(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, draining run...", "signal", sig)
		cancel()
	}()

	app.StartServer()
	slog.Info("Run started", "run_id", app.RunID(), "config", cfgPath)

	report, err := app.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if cerr := app.Close(shutdownCtx); cerr != nil {
		slog.Error("Error during shutdown", "error", cerr)
	}

	if err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}
	if report != nil {
		path := cfg.Dataset.LogDir + "/benchmark_report.json"
		if err := report.WriteFile(path); err != nil {
			slog.Error("Failed to write benchmark report", "error", err)
			os.Exit(1)
		}
		slog.Info("Benchmark report written", "path", path, "summary", report.Summary())
	}
}
