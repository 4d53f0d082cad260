// Package preset provides named, reusable fixed policies.
package preset

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/policy"
)

//go:embed presets/*.yaml
var builtinFS embed.FS

// Preset is a named policy document.
type Preset struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Policy      policy.Document `yaml:"policy"`
}

// Load loads a preset by name. Built-in presets are checked first, then
// <dir>/<name>.yaml.
func Load(name, dir string) (*Preset, error) {
	if data, err := builtinFS.ReadFile(path.Join("presets", name+".yaml")); err == nil {
		p, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in preset %q: %w", name, err)
		}
		return p, nil
	}

	if dir == "" {
		return nil, fmt.Errorf("preset %q not found", name)
	}
	data, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("preset %q not found", name)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse preset %q: %w", name, err)
	}
	return p, nil
}

func parse(data []byte) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns sorted names of all available presets (built-in + dir).
func List(dir string) []string {
	seen := make(map[string]bool)
	if entries, err := builtinFS.ReadDir("presets"); err == nil {
		for _, e := range entries {
			seen[strings.TrimSuffix(e.Name(), ".yaml")] = true
		}
	}
	if dir != "" {
		if entries, err := os.ReadDir(dir); err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
					seen[strings.TrimSuffix(name, ext)] = true
				}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that a preset is well-formed.
func Validate(p *Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if len(p.Policy) == 0 {
		return fmt.Errorf("preset %q declares no activities", p.Name)
	}
	if _, err := policy.FromDocument(p.Policy); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return nil
}

// Build freezes the preset into a Policy.
func (p *Preset) Build() (*policy.Policy, error) {
	return policy.FromDocument(p.Policy)
}

// Overlay applies edits on top of the preset and returns a new Policy. The
// preset is not modified.
func (p *Preset) Overlay(edits []policy.Edit, opts ...policy.Option) (*policy.Policy, error) {
	base, err := p.Build()
	if err != nil {
		return nil, err
	}
	return policy.Parse(base, opts...).Edit(edits...).Build()
}

// Init returns a commented YAML starter template for a new preset.
func Init(name string) string {
	return fmt.Sprintf(`name: %s
description: Custom intervention schedule

# Activity -> ISO date -> restriction. An entry stays in force until the
# next dated entry of the same activity. Declare an activity without
# restrictions as "activity: {}".
policy:
  work: {}
  leisure:
    "2020-03-16":
      fraction: 0.4
      # ciCorrection: 0.8
      # maxGroupSize: 10
      # closingHours: [22, 5]
      # masks: {CLOTH: 0.6, SURGICAL: 0.2}
      # locationBasedRf: {north: 0.3}
    "2020-06-01":
      fraction: 1.0
`, name)
}
