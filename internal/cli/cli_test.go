package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/npipolicy/internal/journal"
	"github.com/ppiankov/npipolicy/internal/store"
)

// setup writes a config that keeps all state under a temp dir.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "npipolicy.yaml")
	content := fmt.Sprintf(`
logger:
  level: error
store:
  path: %s
journal:
  path: %s
presets:
  dir: %s
`, filepath.Join(dir, "policies.db"), filepath.Join(dir, "journal.jsonl"), filepath.Join(dir, "presets"))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStorePutRecordsVersion(t *testing.T) {
	cfgPath := setup(t)
	p := writeFile(t, t.TempDir(), "p.yaml", "leisure:\n  \"2020-03-16\": {fraction: 0.4}\n")

	if err := run(t, "--config", cfgPath, "store", "put", "spring", p); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "--config", cfgPath, "store", "list", "spring"); err != nil {
		t.Fatal(err)
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	rec, err := s.Latest("spring")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != store.KindFixed {
		t.Errorf("expected fixed kind, got %s", rec.Kind)
	}
}

func TestStorePutRejectsInvalidPolicy(t *testing.T) {
	cfgPath := setup(t)
	p := writeFile(t, t.TempDir(), "bad.yaml", "leisure:\n  \"2020-03-16\": {fraction: 1.5}\n")
	if err := run(t, "--config", cfgPath, "store", "put", "bad", p); err == nil {
		t.Error("expected error for invalid policy")
	}
}

func TestSimulateWritesJournalAndMetrics(t *testing.T) {
	cfgPath := setup(t)
	dir := t.TempDir()
	policyPath := writeFile(t, dir, "adaptive.yaml", `
incidences:
  leisure: {activities: [leisure], enter: 100, exit: 50}
restricted-policy:
  leisure: {"2020-01-01": {fraction: 0.2}}
open-policy:
  leisure: {"2020-01-01": {fraction: 0.9}}
`)
	trajPath := writeFile(t, dir, "t.csv", "date,scope,incidence\n2020-03-01,global,120\n2020-03-02,global,30\n")
	metricsPath := filepath.Join(dir, "npi.prom")
	t.Cleanup(func() { simJournal, simMetricsFile, simFormat = false, "", "text" })

	err := run(t, "--config", cfgPath, "simulate", policyPath,
		"--trajectory", trajPath, "--journal", "--metrics-file", metricsPath, "-f", "json")
	if err != nil {
		t.Fatal(err)
	}

	v := journal.Verify(cfg.Journal.Path)
	if !v.Valid || v.Lines != 2 {
		t.Errorf("expected valid journal with 2 entries, got %+v", v)
	}
	if _, err := os.Stat(metricsPath); err != nil {
		t.Errorf("expected metrics file: %v", err)
	}
}

func TestResolvePreset(t *testing.T) {
	cfgPath := setup(t)
	t.Cleanup(func() { resolvePreset = "" })
	if err := run(t, "--config", cfgPath, "resolve", "--preset", "curfew-21-5", "--date", "2021-04-10"); err != nil {
		t.Fatal(err)
	}
	resolvePreset = ""
	if err := run(t, "--config", cfgPath, "resolve", "--date", "2021-04-10"); err == nil {
		t.Error("expected error without policy file or preset")
	}
}

func TestPresetsInitNoOverwriteWithoutForce(t *testing.T) {
	cfgPath := setup(t)
	if err := run(t, "--config", cfgPath, "presets", "init", "mine"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Presets.Dir, "mine.yaml")); err != nil {
		t.Fatalf("expected preset file: %v", err)
	}
	if err := run(t, "--config", cfgPath, "presets", "init", "mine"); err == nil {
		t.Error("expected error on existing preset without --force")
	}
}

func TestPrintResultRejectsUnknownFormat(t *testing.T) {
	err := printResult("xml", func() string { return "" }, func() (string, error) { return "", nil })
	if err == nil {
		t.Error("expected error for unknown format")
	}
}
