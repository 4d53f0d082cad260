package sim

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

func fixed(t *testing.T, fraction float64) *policy.Policy {
	t.Helper()
	p, err := policy.Config().
		RestrictFraction("2020-01-01", fraction, "leisure").
		RestrictFraction("2020-01-01", fraction, "work").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func adaptivePolicy(t *testing.T, enter, exit float64, opts ...adaptive.Option) *adaptive.Policy {
	t.Helper()
	p, err := adaptive.Config(opts...).
		IncidenceTrigger("leisure", enter, exit, "leisure").
		InitialPolicy(fixed(t, 0.8)).
		RestrictedPolicy(fixed(t, 0.2)).
		OpenPolicy(fixed(t, 0.9)).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func trajectory(values ...float64) *Trajectory {
	t := &Trajectory{}
	d := model.MustDate("2020-03-01")
	for i, v := range values {
		t.Days = append(t.Days, Day{
			Date:      model.FormatDate(d.AddDate(0, 0, i)),
			Incidence: map[string]float64{adaptive.Global: v},
		})
	}
	return t
}

// writeFile writes content to a temp file.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSimulateHysteresis(t *testing.T) {
	p := adaptivePolicy(t, 100, 50)
	r, err := Simulate(p, trajectory(30, 120, 80, 40, 60), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(r.Activities) != 1 || r.Activities[0] != "leisure" {
		t.Errorf("expected trigger activities, got %v", r.Activities)
	}
	want := []float64{0.8, 0.2, 0.2, 0.9, 0.9}
	for i, w := range want {
		if got := r.Days[i].Fractions["leisure"]; got != w {
			t.Errorf("day %d: expected %v, got %v", i, w, got)
		}
	}
	if len(r.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %+v", r.Transitions)
	}
	if r.Transitions[0].Date != "2020-03-02" || r.Transitions[0].To != adaptive.RegimeRestricted {
		t.Errorf("unexpected first transition %+v", r.Transitions[0])
	}
	if r.RestrictedDays["leisure/global"] != 2 {
		t.Errorf("expected 2 restricted days, got %v", r.RestrictedDays)
	}
}

func TestSimulateUngroupedActivityFollowsInitial(t *testing.T) {
	p := adaptivePolicy(t, 100, 50)
	r, err := Simulate(p, trajectory(120), []string{"work"})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Days[0].Fractions["work"]; got != 0.8 {
		t.Errorf("expected work to follow initial policy, got %v", got)
	}
	// an explicit list replaces the trigger activities
	if len(r.Activities) != 1 || r.Activities[0] != "work" {
		t.Errorf("expected only work reported, got %v", r.Activities)
	}
	if _, ok := r.Days[0].Fractions["leisure"]; ok {
		t.Error("expected leisure not reported")
	}
}

func TestSimulateFromCumulativeCases(t *testing.T) {
	p := adaptivePolicy(t, 100, 50)
	tr := &Trajectory{Population: map[string]float64{adaptive.Global: 100_000}}
	d := model.MustDate("2020-03-01")
	for i := 0; i <= 8; i++ {
		tr.Days = append(tr.Days, Day{
			Date:  model.FormatDate(d.AddDate(0, 0, i)),
			Cases: map[string]float64{adaptive.Global: float64(20 * i)},
		})
	}
	r, err := Simulate(p, tr, nil)
	if err != nil {
		t.Fatal(err)
	}
	// 140 cases per 100k over the first full week
	if len(r.Transitions) != 1 || r.Transitions[0].Date != "2020-03-08" || r.Transitions[0].Incidence != 140 {
		t.Errorf("unexpected transitions %+v", r.Transitions)
	}
}

func TestSimulateLocalScope(t *testing.T) {
	restricted, err := policy.Config().
		Restrict("2020-01-01", restriction.Must(restriction.OfLocationBasedRf(map[string]float64{"north": 0.2})), "leisure").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	p, err := adaptive.Config().
		IncidenceTrigger("leisure", 100, 50, "leisure").
		RestrictedPolicy(restricted).
		OpenPolicy(fixed(t, 0.9)).
		RestrictionScope(adaptive.ScopeLocal).
		Districts("north", "south").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	tr := &Trajectory{Days: []Day{
		{Date: "2020-03-01", Incidence: map[string]float64{"global": 60, "north": 150, "south": 20, "east": 500}},
	}}
	r, err := Simulate(p, tr, nil)
	if err != nil {
		t.Fatal(err)
	}
	day := r.Days[0]
	if day.Districts["leisure"]["north"] != 0.2 {
		t.Errorf("expected north restricted, got %v", day.Districts["leisure"]["north"])
	}
	if day.Regimes["leisure/south"] != adaptive.RegimeInitial {
		t.Errorf("expected south initial, got %v", day.Regimes["leisure/south"])
	}
	if _, ok := day.Regimes["leisure/east"]; ok {
		t.Error("expected undeclared district to be ignored")
	}
}

func TestTrajectoryValidate(t *testing.T) {
	tests := []struct {
		name string
		tr   Trajectory
	}{
		{"empty", Trajectory{}},
		{"bad date", Trajectory{Days: []Day{{Date: "March 1"}}}},
		{"not increasing", Trajectory{Days: []Day{{Date: "2020-03-02"}, {Date: "2020-03-01"}}}},
		{"cases without population", Trajectory{Days: []Day{{Date: "2020-03-01", Cases: map[string]float64{"global": 1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tr.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

type failingRecorder struct{}

func (failingRecorder) RecordTransition(adaptive.Transition) error {
	return errors.New("disk full")
}

func TestRecorderErrorsCounted(t *testing.T) {
	p := adaptivePolicy(t, 100, 50, adaptive.WithJournal(failingRecorder{}))
	r, err := Simulate(p, trajectory(120, 30), nil)
	if err != nil {
		t.Fatalf("expected run to continue, got %v", err)
	}
	if r.RecorderErrors != 2 {
		t.Errorf("expected 2 recorder errors, got %d", r.RecorderErrors)
	}
	if !strings.Contains(FormatText(r), "2 journal writes failed") {
		t.Error("expected recorder failures in text output")
	}
}

func TestLoadTrajectoryYAMLAndCSV(t *testing.T) {
	yamlPath := writeFile(t, "t.yaml", `
days:
  - date: "2020-03-01"
    incidence: {global: 120}
  - date: "2020-03-02"
    incidence: {global: 40}
`)
	ty, err := LoadTrajectory(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	csvPath := writeFile(t, "t.csv", "date,scope,incidence\n2020-03-02,global,40\n2020-03-01,global,120\n")
	tc, err := LoadTrajectory(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(ty.Days) != 2 || len(tc.Days) != 2 {
		t.Fatalf("expected 2 days each, got %d and %d", len(ty.Days), len(tc.Days))
	}
	for i := range ty.Days {
		if ty.Days[i].Date != tc.Days[i].Date || ty.Days[i].Incidence["global"] != tc.Days[i].Incidence["global"] {
			t.Errorf("day %d differs: %+v vs %+v", i, ty.Days[i], tc.Days[i])
		}
	}

	bad := writeFile(t, "bad.csv", "when,where,what\n")
	if _, err := LoadTrajectory(bad); err == nil {
		t.Error("expected error for bad CSV header")
	}
}

func TestCompare(t *testing.T) {
	old := adaptivePolicy(t, 100, 50)
	updated := adaptivePolicy(t, 150, 50)
	r, err := Compare(old, updated, trajectory(30, 120, 80), nil)
	if err != nil {
		t.Fatal(err)
	}
	// 120 and 80 restrict only under the old thresholds
	if r.ChangedPoints != 2 || r.NewlyLooser != 2 || r.NewlyTighter != 0 {
		t.Errorf("unexpected compare result %+v", r)
	}
	if r.TotalPoints != 3 {
		t.Errorf("expected 3 points, got %d", r.TotalPoints)
	}
	if !strings.Contains(FormatCompareText(r), "2 of 3 points changed") {
		t.Errorf("unexpected text:\n%s", FormatCompareText(r))
	}

	same, err := Compare(old, old, trajectory(30, 120), nil)
	if err != nil {
		t.Fatal(err)
	}
	if FormatCompareText(same) != "No changes detected.\n" {
		t.Errorf("expected no changes, got %+v", same)
	}
}

func TestFormatJSON(t *testing.T) {
	r, err := Simulate(adaptivePolicy(t, 100, 50), trajectory(120), nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := FormatJSON(r)
	if err != nil {
		t.Fatal(err)
	}
	var back SimResult
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Days) != 1 || back.Days[0].Fractions["leisure"] != 0.2 {
		t.Errorf("unexpected decoded result %+v", back)
	}
}
