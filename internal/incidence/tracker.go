// Package incidence derives 7-day incidence per 100,000 inhabitants from
// cumulative case counts.
package incidence

import (
	"math"
	"sort"
	"time"

	"github.com/ppiankov/npipolicy/internal/model"
)

// Window is the number of days summed into one incidence figure.
const Window = 7

// Reporter receives incidence figures, typically an adaptive session.
type Reporter interface {
	ReportIncidence(scope, group string, value float64) error
}

// Tracker stores cumulative cases per 100,000 per scope and day.
type Tracker struct {
	series map[string]map[time.Time]float64
}

func NewTracker() *Tracker {
	return &Tracker{series: make(map[string]map[time.Time]float64)}
}

// Record stores the cumulative case count of scope on date.
func (t *Tracker) Record(scope string, date time.Time, cumulativeCases, population float64) error {
	if population <= 0 || math.IsNaN(population) {
		return &model.ValidationError{Field: "population", Value: population, Reason: "must be positive"}
	}
	if cumulativeCases < 0 || math.IsNaN(cumulativeCases) {
		return &model.ValidationError{Field: "cumulativeCases", Value: cumulativeCases, Reason: "must be a number >= 0"}
	}
	s, ok := t.series[scope]
	if !ok {
		s = make(map[time.Time]float64)
		t.series[scope] = s
	}
	s[model.Day(date)] = cumulativeCases * 100_000 / population
	return nil
}

// Weekly returns the incidence of the 7 days ending on date. ok is false
// until both endpoints of the window are recorded.
func (t *Tracker) Weekly(scope string, date time.Time) (float64, bool) {
	s := t.series[scope]
	day := model.Day(date)
	now, ok := s[day]
	if !ok {
		return 0, false
	}
	before, ok := s[day.AddDate(0, 0, -Window)]
	if !ok {
		return 0, false
	}
	return math.Max(0, now-before), true
}

// Scopes returns the scopes with recorded data in sorted order.
func (t *Tracker) Scopes() []string {
	out := make([]string, 0, len(t.series))
	for k := range t.series {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Report forwards the weekly incidence of every scope to r for all groups.
// Scopes without a full window are skipped.
func (t *Tracker) Report(r Reporter, date time.Time) error {
	for _, scope := range t.Scopes() {
		v, ok := t.Weekly(scope, date)
		if !ok {
			continue
		}
		if err := r.ReportIncidence(scope, "", v); err != nil {
			return err
		}
	}
	return nil
}
