package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/journal"
	"github.com/ppiankov/npipolicy/internal/metrics"
	"github.com/ppiankov/npipolicy/internal/sim"
)

var (
	simTrajectory  string
	simActivities  []string
	simCompare     string
	simJournal     bool
	simMetricsFile string
	simFormat      string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simTrajectory, "trajectory", "", "Path to incidence trajectory YAML or CSV (required)")
	simulateCmd.Flags().StringSliceVarP(&simActivities, "activity", "a", nil, "Activities to report (default: every trigger activity)")
	simulateCmd.Flags().StringVar(&simCompare, "compare", "", "Second adaptive policy to compare against")
	simulateCmd.Flags().BoolVar(&simJournal, "journal", false, "Append transitions to the configured journal")
	simulateCmd.Flags().StringVar(&simMetricsFile, "metrics-file", "", "Write final Prometheus metrics to this textfile")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
	simulateCmd.MarkFlagRequired("trajectory")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <adaptive.yaml>",
	Short: "Run an adaptive policy over an incidence trajectory",
	Long: "Steps an adaptive policy once per day of a recorded or synthetic\n" +
		"incidence trajectory and shows regime transitions and the remaining\n" +
		"fraction per activity.\n\n" +
		"With --compare, runs both policies and shows which days changed.",
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	t, err := sim.LoadTrajectory(simTrajectory)
	if err != nil {
		return err
	}

	if simCompare != "" {
		oldP, err := adaptive.Load(args[0])
		if err != nil {
			return err
		}
		newP, err := adaptive.Load(simCompare)
		if err != nil {
			return err
		}
		result, err := sim.Compare(oldP, newP, t, simActivities)
		if err != nil {
			return err
		}
		return printResult(simFormat,
			func() string { return sim.FormatCompareText(result) },
			func() (string, error) { return sim.FormatCompareJSON(result) })
	}

	opts := []adaptive.Option{adaptive.WithLogger(logger)}

	var m *metrics.Metrics
	if simMetricsFile != "" {
		m = metrics.New(nil)
		opts = append(opts, adaptive.WithMetrics(m))
	}

	if simJournal {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read adaptive policy: %w", err)
		}
		j, err := journal.Open(cfg.Journal.Path, journal.WithPolicyHash(journal.HashLine(data)))
		if err != nil {
			return err
		}
		defer j.Close()
		logger.Info("journaling transitions",
			zap.String("path", cfg.Journal.Path), zap.String("run_id", j.RunID()))
		opts = append(opts, adaptive.WithJournal(j))
	}

	p, err := adaptive.Load(args[0], opts...)
	if err != nil {
		return err
	}
	result, err := sim.Simulate(p, t, simActivities)
	if err != nil {
		return err
	}

	if m != nil {
		if err := m.WriteFile(simMetricsFile); err != nil {
			return err
		}
	}

	return printResult(simFormat,
		func() string { return sim.FormatText(result) },
		func() (string, error) { return sim.FormatJSON(result) })
}
