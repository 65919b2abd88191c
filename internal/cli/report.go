package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vietddude/docketbench/internal/core/config"
	"github.com/vietddude/docketbench/internal/retrieval/bench"
)

var (
	reportLogPath string
	reportRunID   string
)

// reportCmd rescores an existing execution log without touching any
// external service. Useful after a crashed or interrupted run.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Rebuild the benchmark report from an execution log",
	Run:   runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportLogPath, "log", "", "execution log path (default <log_dir>/execution_log.jsonl)")
	reportCmd.Flags().StringVar(&reportRunID, "run-id", "replay", "run id to stamp on the rebuilt report")
}

func runReport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.Dataset.GroundTruthPath == "" {
		slog.Error("dataset.ground_truth_path is required for scoring")
		os.Exit(1)
	}
	truth, err := config.LoadGroundTruth(cfg.Dataset.GroundTruthPath)
	if err != nil {
		slog.Error("Failed to load ground truth", "error", err)
		os.Exit(1)
	}

	logPath := reportLogPath
	if logPath == "" {
		logPath = filepath.Join(cfg.Dataset.LogDir, "execution_log.jsonl")
	}

	report, err := bench.FromEventLog(reportRunID, logPath, truth, 0)
	if err != nil {
		slog.Error("Failed to rebuild report", "error", err)
		os.Exit(1)
	}

	outPath := filepath.Join(cfg.Dataset.LogDir, "benchmark_report.json")
	if err := report.WriteFile(outPath); err != nil {
		slog.Error("Failed to write benchmark report", "error", err)
		os.Exit(1)
	}
	slog.Info("Benchmark report written", "path", outPath, "summary", report.Summary())
}
