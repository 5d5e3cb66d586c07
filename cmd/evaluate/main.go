package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/support-router/backend/internal/evaluation"
	"github.com/support-router/backend/internal/intent"
	appLogger "github.com/support-router/backend/pkg/logger"
)

type options struct {
	dataset     string
	format      string
	minAccuracy float64
	logLevel    string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "evaluate",
		Short:        "Measure intent routing accuracy against a labelled dataset",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dataset, "dataset", "d", "", "Path to a JSON dataset; the built-in cases are used when empty")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Report format: text or json")
	cmd.Flags().Float64Var(&opts.minAccuracy, "min-accuracy", 0, "Exit non-zero when accuracy (percent) falls below this value")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	if err := appLogger.Init(opts.logLevel, "console", "stderr"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	dataset := evaluation.DefaultDataset()
	if opts.dataset != "" {
		var err error
		dataset, err = evaluation.LoadDatasetFile(opts.dataset)
		if err != nil {
			appLogger.Error("Failed to load dataset", zap.String("path", opts.dataset), zap.Error(err))
			return err
		}
	}

	report := evaluation.NewEvaluator(intent.Default()).RunDatasetEvaluation(dataset)

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	case "text":
		fmt.Fprint(out, evaluation.GenerateReport(report))
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	if report.Accuracy < opts.minAccuracy {
		return fmt.Errorf("accuracy %.1f%% is below the required %.1f%%", report.Accuracy, opts.minAccuracy)
	}
	return nil
}
