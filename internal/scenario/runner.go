package scenario

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/preset"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

const tolerance = 1e-9

// Build assembles the scenario schedule: the named preset if any, else
// base (which may be nil), with the scenario edits applied on top.
func Build(s *Scenario, base *policy.Policy, presetDir string, opts ...policy.Option) (*policy.Policy, error) {
	edits, err := Edits(s.Edits)
	if err != nil {
		return nil, err
	}
	if s.Preset != "" {
		p, err := preset.Load(s.Preset, presetDir)
		if err != nil {
			return nil, err
		}
		return p.Overlay(edits, opts...)
	}
	if base != nil {
		return policy.Parse(base, opts...).Edit(edits...).Build()
	}
	return policy.Config(opts...).Edit(edits...).Build()
}

// Run builds the scenario schedule and evaluates every case. Cases are
// independent. A schedule that fails to build fails every case.
func Run(s *Scenario, base *policy.Policy, presetDir string, opts ...policy.Option) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	p, err := Build(s, base, presetDir, opts...)
	if err != nil {
		result.Error = err.Error()
		result.Failed = result.Total
		return result
	}

	for i, c := range s.Cases {
		cr := evaluate(p, c)
		cr.Index = i + 1
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}
	return result
}

func evaluate(p *policy.Policy, c Case) CaseResult {
	cr := CaseResult{Date: c.Date, Activity: c.Activity, District: c.District}
	date, err := model.ParseDate(c.Date)
	if err != nil {
		cr.Failures = []string{err.Error()}
		return cr
	}
	r, err := p.Resolve(date, c.Activity)
	if err != nil {
		cr.Failures = []string{err.Error()}
		return cr
	}
	cr.Actual = r.String()
	cr.Failures = check(r, c)
	cr.Passed = len(cr.Failures) == 0
	return cr
}

func check(r restriction.Restriction, c Case) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}
	e := c.Expect

	if e.Fraction != nil {
		got := r.RemainingFraction()
		if c.District != "" {
			got = r.FractionFor(c.District)
		}
		if !near(got, *e.Fraction) {
			fail("fraction: expected %g, got %g", *e.Fraction, got)
		}
	}
	if e.CiCorrection != nil && !near(r.CiCorrection(), *e.CiCorrection) {
		fail("ci_correction: expected %g, got %g", *e.CiCorrection, r.CiCorrection())
	}
	if len(e.Masks) > 0 {
		got := r.MaskCompliance()
		names := make([]string, 0, len(e.Masks))
		for name := range e.Masks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if v := got[restriction.Mask(name)]; !near(v, e.Masks[name]) {
				fail("masks.%s: expected %g, got %g", name, e.Masks[name], v)
			}
		}
	}
	if e.ClosingHours != nil {
		got, ok := r.ClosingHours()
		switch {
		case e.ClosingHours.Start == e.ClosingHours.End:
			if ok {
				fail("closing_hours: expected none, got %d-%d", got.Start, got.End)
			}
		case !ok || got != *e.ClosingHours:
			fail("closing_hours: expected %d-%d, got %s", e.ClosingHours.Start, e.ClosingHours.End, describeHours(got, ok))
		}
	}
	if e.MaxGroupSize != nil {
		got, ok := r.MaxGroupSize()
		if !ok || got != *e.MaxGroupSize {
			fail("max_group_size: expected %d, got %s", *e.MaxGroupSize, describeSize(got, ok))
		}
	}
	if e.Open != nil && r.IsOpen() != *e.Open {
		fail("open: expected %t, got %t", *e.Open, r.IsOpen())
	}
	return failures
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func describeHours(h restriction.ClosingHours, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%d-%d", h.Start, h.End)
}

func describeSize(n int, ok bool) string {
	if !ok {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadAndRun loads a scenario file and an optional base policy, and runs.
func LoadAndRun(path, policyPath, presetDir string, opts ...policy.Option) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	var base *policy.Policy
	if policyPath != "" {
		base, err = policy.Load(policyPath)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	result := Run(s, base, presetDir, opts...)
	result.File = path
	return result, nil
}
