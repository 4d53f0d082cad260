package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/preset"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

var (
	resolveDate       string
	resolvePreset     string
	resolveActivities []string
	resolveDistrict   string
	resolveFormat     string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveDate, "date", "", "Simulation day YYYY-MM-DD (required)")
	resolveCmd.Flags().StringVar(&resolvePreset, "preset", "", "Resolve a preset instead of a policy file")
	resolveCmd.Flags().StringSliceVarP(&resolveActivities, "activity", "a", nil, "Activities to resolve (default all)")
	resolveCmd.Flags().StringVar(&resolveDistrict, "district", "", "Report the district specific remaining fraction")
	resolveCmd.Flags().StringVarP(&resolveFormat, "format", "f", "text", "Output format (text|json)")
	resolveCmd.MarkFlagRequired("date")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [policy.yaml]",
	Short: "Show the restrictions in effect on a date",
	Long: "Loads a fixed policy (or a preset) and prints the restriction in\n" +
		"effect for each activity on the given day.",
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

type resolvedRow struct {
	Activity    string                  `json:"activity"`
	Restriction restriction.Restriction `json:"restriction"`
	Fraction    float64                 `json:"fraction"`
}

func loadFixed(args []string, presetName string) (*policy.Policy, error) {
	switch {
	case presetName != "":
		ps, err := preset.Load(presetName, cfg.Presets.Dir)
		if err != nil {
			return nil, err
		}
		return ps.Build()
	case len(args) == 1:
		return policy.Load(args[0])
	default:
		return nil, fmt.Errorf("a policy file or --preset is required")
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	p, err := loadFixed(args, resolvePreset)
	if err != nil {
		return err
	}
	date, err := model.ParseDate(resolveDate)
	if err != nil {
		return err
	}

	activities := resolveActivities
	if len(activities) == 0 {
		activities = p.Activities()
	}
	sort.Strings(activities)

	rows := make([]resolvedRow, 0, len(activities))
	for _, a := range activities {
		r, err := p.ResolveDistrict(date, a, resolveDistrict)
		if err != nil {
			return err
		}
		rows = append(rows, resolvedRow{Activity: a, Restriction: r, Fraction: r.FractionFor(resolveDistrict)})
	}

	return printResult(resolveFormat,
		func() string {
			var b strings.Builder
			fmt.Fprintf(&b, "Restrictions on %s:\n\n", model.FormatDate(date))
			for _, row := range rows {
				fmt.Fprintf(&b, "  %-16s %-8.3f %s\n", row.Activity, row.Fraction, row.Restriction)
			}
			return b.String()
		},
		func() (string, error) {
			out, err := json.MarshalIndent(rows, "", "  ")
			return string(out), err
		})
}
