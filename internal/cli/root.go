package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/config"
	"github.com/ppiankov/npipolicy/internal/logging"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger = zap.NewNop()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./npipolicy.yaml or ~/.npipolicy/npipolicy.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logger.level (debug|info|warn|error)")
}

var rootCmd = &cobra.Command{
	Use:   "npipolicy",
	Short: "Non-pharmaceutical intervention schedules for epidemic simulations",
	Long: "Builds, checks and simulates dated restriction schedules per activity,\n" +
		"including adaptive policies that switch regimes on incidence thresholds.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Logger.Level = logLevel
		}
		l, err := logging.New(c.Logger.Level, c.Logger.Format)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// printResult writes text or JSON depending on format.
func printResult(format string, text func() string, asJSON func() (string, error)) error {
	switch format {
	case "json":
		out, err := asJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "text", "":
		fmt.Print(text())
	default:
		return fmt.Errorf("unknown format %q (text|json)", format)
	}
	return nil
}
