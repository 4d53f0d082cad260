package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/policydiff"
)

var (
	diffFormat   string
	diffAdaptive bool
)

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
	diffCmd.Flags().BoolVar(&diffAdaptive, "adaptive", false, "Compare adaptive policy documents")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old.yaml> <new.yaml>",
	Short: "Compare two policy files and show changes",
	Long: "Loads two policy files and shows what changed in human-readable terms:\n" +
		"activities added/removed, dated restrictions added/removed/changed and,\n" +
		"with --adaptive, trigger thresholds, scope and embedded schedules.",
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	var result *policydiff.DiffResult
	if diffAdaptive {
		oldP, err := adaptive.Load(args[0])
		if err != nil {
			return fmt.Errorf("load old policy: %w", err)
		}
		newP, err := adaptive.Load(args[1])
		if err != nil {
			return fmt.Errorf("load new policy: %w", err)
		}
		result = policydiff.DiffAdaptive(oldP.Document(), newP.Document())
	} else {
		oldP, err := policy.Load(args[0])
		if err != nil {
			return fmt.Errorf("load old policy: %w", err)
		}
		newP, err := policy.Load(args[1])
		if err != nil {
			return fmt.Errorf("load new policy: %w", err)
		}
		result = policydiff.Diff(oldP.Document(), newP.Document())
	}
	result.OldPath = args[0]
	result.NewPath = args[1]

	return printResult(diffFormat,
		func() string { return policydiff.FormatText(result) },
		func() (string, error) { return policydiff.FormatJSON(result) })
}
