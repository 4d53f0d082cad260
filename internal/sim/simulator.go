// Package sim replays an incidence trajectory through an adaptive policy.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/incidence"
	"github.com/ppiankov/npipolicy/internal/model"
)

// DayResult is the resolved state of one simulated day.
type DayResult struct {
	Date      string                        `json:"date"`
	Regimes   map[string]adaptive.Regime    `json:"regimes"`
	Fractions map[string]float64            `json:"fractions"`
	Districts map[string]map[string]float64 `json:"districts,omitempty"`
}

// TransitionEntry is a regime change in serialisable form.
type TransitionEntry struct {
	Date      string          `json:"date"`
	Group     string          `json:"group"`
	Scope     string          `json:"scope"`
	From      adaptive.Regime `json:"from"`
	To        adaptive.Regime `json:"to"`
	Incidence float64         `json:"incidence"`
}

// SimResult holds the complete simulation output.
type SimResult struct {
	Activities     []string          `json:"activities"`
	Days           []DayResult       `json:"days"`
	Transitions    []TransitionEntry `json:"transitions"`
	RestrictedDays map[string]int    `json:"restricted_days"`
	RecorderErrors int               `json:"recorder_errors,omitempty"`
}

// Simulate steps a fresh session through every day of t and resolves
// activities after each step. Empty activities means every activity named
// by a trigger. Under local scope each declared district is resolved too.
// Recorder failures are counted and do not stop the run.
func Simulate(p *adaptive.Policy, t *Trajectory, activities []string) (*SimResult, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		activities = triggerActivities(p)
	}

	scopes := map[string]bool{adaptive.Global: true}
	for _, d := range p.Districts() {
		scopes[d] = true
	}
	var districts []string
	if p.Scope() == adaptive.ScopeLocal {
		districts = p.Districts()
	}

	session := p.NewSession()
	tracker := incidence.NewTracker()
	result := &SimResult{
		Activities:     activities,
		RestrictedDays: make(map[string]int),
	}

	for _, day := range t.Days {
		date := model.MustDate(day.Date)

		for _, scope := range sortedKeys(day.Cases) {
			if !scopes[scope] {
				continue
			}
			if err := tracker.Record(scope, date, day.Cases[scope], t.Population[scope]); err != nil {
				return nil, fmt.Errorf("%s: %w", day.Date, err)
			}
		}
		if err := tracker.Report(session, date); err != nil {
			return nil, fmt.Errorf("%s: %w", day.Date, err)
		}
		for _, scope := range sortedKeys(day.Incidence) {
			if !scopes[scope] {
				continue
			}
			if err := session.ReportIncidence(scope, "", day.Incidence[scope]); err != nil {
				return nil, fmt.Errorf("%s: %w", day.Date, err)
			}
		}

		transitions, err := session.Step(date)
		if err != nil {
			var ce *model.ConfigurationError
			if errors.As(err, &ce) {
				return nil, fmt.Errorf("%s: %w", day.Date, err)
			}
			result.RecorderErrors++
		}
		for _, tr := range transitions {
			result.Transitions = append(result.Transitions, TransitionEntry{
				Date:      day.Date,
				Group:     tr.Group,
				Scope:     tr.Scope,
				From:      tr.From,
				To:        tr.To,
				Incidence: tr.Incidence,
			})
		}

		dr, err := resolveDay(p, session, date, activities, districts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", day.Date, err)
		}
		dr.Date = day.Date
		for key, r := range dr.Regimes {
			if r == adaptive.RegimeRestricted {
				result.RestrictedDays[key]++
			}
		}
		result.Days = append(result.Days, dr)
	}
	return result, nil
}

func resolveDay(p *adaptive.Policy, s *adaptive.Session, date time.Time, activities, districts []string) (DayResult, error) {
	dr := DayResult{
		Regimes:   make(map[string]adaptive.Regime),
		Fractions: make(map[string]float64, len(activities)),
	}
	for _, t := range p.Triggers() {
		for _, scope := range append([]string{adaptive.Global}, districts...) {
			if r, ok := s.Regime(t.Group, scope); ok {
				dr.Regimes[t.Group+"/"+scope] = r
			}
		}
	}
	for _, a := range activities {
		r, err := s.Resolve(date, a)
		if err != nil {
			return dr, err
		}
		dr.Fractions[a] = r.RemainingFraction()
		if len(districts) == 0 {
			continue
		}
		if dr.Districts == nil {
			dr.Districts = make(map[string]map[string]float64)
		}
		dr.Districts[a] = make(map[string]float64, len(districts))
		for _, d := range districts {
			rd, err := s.ResolveDistrict(date, a, d)
			if err != nil {
				return dr, err
			}
			dr.Districts[a][d] = rd.FractionFor(d)
		}
	}
	return dr, nil
}

func triggerActivities(p *adaptive.Policy) []string {
	var out []string
	for _, t := range p.Triggers() {
		out = append(out, t.Activities...)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
