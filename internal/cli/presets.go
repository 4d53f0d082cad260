package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/preset"
)

var presetsForce bool

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd, presetsShowCmd, presetsInitCmd)
	presetsInitCmd.Flags().BoolVar(&presetsForce, "force", false, "Overwrite an existing preset file")
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage named policy presets",
	Long:  "Commands for listing, inspecting and creating presets. Built-in\npresets are always available; custom ones live in presets.dir.",
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range preset.List(cfg.Presets.Dir) {
			p, err := preset.Load(name, cfg.Presets.Dir)
			if err != nil {
				fmt.Printf("  %-20s (invalid: %v)\n", name, err)
				continue
			}
			fmt.Printf("  %-20s %s\n", name, p.Description)
		}
		return nil
	},
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset's policy document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := preset.Load(args[0], cfg.Presets.Dir)
		if err != nil {
			return err
		}
		return encodeYAML(os.Stdout, p)
	},
}

var presetsInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Write a starter preset to presets.dir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(cfg.Presets.Dir, args[0]+".yaml")
		if _, err := os.Stat(path); err == nil && !presetsForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(cfg.Presets.Dir, 0o755); err != nil {
			return fmt.Errorf("create presets dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(preset.Init(args[0])), 0o644); err != nil {
			return fmt.Errorf("write preset: %w", err)
		}
		fmt.Printf("Created %s\n", path)
		return nil
	},
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
