package adaptive

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/model"
)

type groupScope struct {
	group string
	scope string
}

// State is the per simulation control state: the regime of every group in
// every scope and the last known incidence figures. It is mutated by
// ReportIncidence and Policy.Step from the simulation loop only.
type State struct {
	regimes   map[groupScope]Regime
	incidence map[groupScope]float64
	calm      map[groupScope]int
	groups    []string
	scopes    map[string]bool

	last    time.Time
	stepped bool
}

// NewState returns a state with every group in the initial regime.
func (p *Policy) NewState() *State {
	s := &State{
		regimes:   make(map[groupScope]Regime),
		incidence: make(map[groupScope]float64),
		calm:      make(map[groupScope]int),
		scopes:    map[string]bool{Global: true},
	}
	for _, d := range p.districts {
		s.scopes[d] = true
	}
	for _, t := range p.triggers {
		s.groups = append(s.groups, t.Group)
		for _, key := range p.scopeKeys() {
			s.regimes[groupScope{t.Group, key}] = RegimeInitial
		}
	}
	return s
}

// ReportIncidence stores the incidence observed for group in scope. An
// empty group reports the value for every group. Values persist until
// overwritten.
func (s *State) ReportIncidence(scope, group string, value float64) error {
	if math.IsNaN(value) || value < 0 {
		return &model.ValidationError{Field: "incidence", Value: value, Reason: "must be a number >= 0"}
	}
	if !s.scopes[scope] {
		return model.Configurationf("unknown scope key %q", scope)
	}
	if group == "" {
		for _, g := range s.groups {
			s.incidence[groupScope{g, scope}] = value
		}
		return nil
	}
	if !s.hasGroup(group) {
		return model.Configurationf("unknown group %q", group)
	}
	s.incidence[groupScope{group, scope}] = value
	return nil
}

// Regime returns the regime of group in scope.
func (s *State) Regime(group, scope string) (Regime, bool) {
	r, ok := s.regimes[groupScope{group, scope}]
	return r, ok
}

// LastStep returns the date of the last Step.
func (s *State) LastStep() (time.Time, bool) {
	return s.last, s.stepped
}

func (s *State) hasGroup(group string) bool {
	for _, g := range s.groups {
		if g == group {
			return true
		}
	}
	return false
}

func (s *State) regime(group, scope string) Regime {
	if r, ok := s.regimes[groupScope{group, scope}]; ok {
		return r
	}
	return s.regimes[groupScope{group, Global}]
}

// lookup returns the last known incidence of group in scope, falling back
// to the global figure.
func (s *State) lookup(group, scope string) (float64, bool) {
	if v, ok := s.incidence[groupScope{group, scope}]; ok {
		return v, true
	}
	v, ok := s.incidence[groupScope{group, Global}]
	return v, ok
}

func (s *State) checkStepped(day time.Time) error {
	if s == nil {
		return model.Configurationf("resolve %s: no state", model.FormatDate(day))
	}
	if !s.stepped || !s.last.Equal(day) {
		return model.Configurationf("resolve %s: state not stepped to this date", model.FormatDate(day))
	}
	return nil
}

// Step advances the state to date. It must be called exactly once per
// simulated day with strictly increasing dates, after the day's incidence
// was reported and before any Resolve for that day. Recorder failures are
// returned after the state has been fully updated.
func (p *Policy) Step(s *State, date time.Time) ([]Transition, error) {
	day := model.Day(date)
	if s.stepped && !day.After(s.last) {
		return nil, model.Configurationf("step %s: state already stepped to %s",
			model.FormatDate(day), model.FormatDate(s.last))
	}
	s.last = day
	s.stepped = true
	if day.Before(p.start) {
		return nil, nil
	}

	var transitions []Transition
	var errs []error
	for _, t := range p.triggers {
		for _, key := range p.scopeKeys() {
			value, ok := s.lookup(t.Group, key)
			if !ok {
				continue
			}
			gs := groupScope{t.Group, key}
			from := s.regimes[gs]
			to := p.next(s, gs, from, value, t)
			if p.observer != nil {
				p.observer.ObserveIncidence(t.Group, key, value)
				p.observer.ObserveRegime(t.Group, key, to)
			}
			if to == from {
				continue
			}
			s.regimes[gs] = to
			tr := Transition{Date: day, Group: t.Group, Scope: key, From: from, To: to, Incidence: value}
			transitions = append(transitions, tr)
			p.logger.Info("regime changed",
				zap.String("date", model.FormatDate(day)),
				zap.String("group", t.Group),
				zap.String("scope", key),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
				zap.Float64("incidence", value))
			if p.observer != nil {
				p.observer.ObserveTransition(tr)
			}
			if p.recorder != nil {
				if err := p.recorder.RecordTransition(tr); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	if len(errs) > 0 {
		return transitions, errors.Join(errs...)
	}
	return transitions, nil
}

// next applies the threshold rule. Leaving the restricted regime requires
// openAfterDays consecutive steps at or below the exit threshold.
func (p *Policy) next(s *State, gs groupScope, from Regime, value float64, t Trigger) Regime {
	if from != RegimeRestricted {
		if value >= t.Enter {
			s.calm[gs] = 0
			return RegimeRestricted
		}
		return from
	}
	if value > t.Exit {
		s.calm[gs] = 0
		return from
	}
	s.calm[gs]++
	if s.calm[gs] >= p.openAfterDays {
		s.calm[gs] = 0
		return RegimeOpen
	}
	return from
}
