// Package adaptive switches activity groups between restricted and open
// schedules based on observed incidence, with hysteresis and an optional
// per district scope.
package adaptive

import (
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Regime is the schedule a group currently follows.
type Regime string

const (
	RegimeInitial    Regime = "initial"
	RegimeRestricted Regime = "restricted"
	RegimeOpen       Regime = "open"
)

// Scope selects whether regimes are tracked once or per district.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeLocal  Scope = "local"
)

// Global is the scope key of the region wide regime and incidence.
const Global = "global"

// Trigger binds an activity group to incidence thresholds. Enter >= Exit.
type Trigger struct {
	Group      string
	Activities []string
	Enter      float64
	Exit       float64
}

// Transition records a regime change of one group in one scope.
type Transition struct {
	Date      time.Time
	Group     string
	Scope     string
	From      Regime
	To        Regime
	Incidence float64
}

// Recorder persists transitions, e.g. to an audit journal.
type Recorder interface {
	RecordTransition(t Transition) error
}

// Observer receives per step measurements, e.g. for metrics export.
type Observer interface {
	ObserveIncidence(group, scope string, value float64)
	ObserveRegime(group, scope string, regime Regime)
	ObserveTransition(t Transition)
}

// Policy is a frozen adaptive policy. It holds no per simulation state and
// is safe for concurrent use; per simulation state lives in State.
type Policy struct {
	triggers      []Trigger
	groupOf       map[string]string
	initial       *policy.Policy
	restricted    *policy.Policy
	open          *policy.Policy
	start         time.Time
	scope         Scope
	districts     []string
	openAfterDays int

	logger   *zap.Logger
	observer Observer
	recorder Recorder
}

// Triggers returns the triggers ordered by group name.
func (p *Policy) Triggers() []Trigger {
	out := make([]Trigger, len(p.triggers))
	for i, t := range p.triggers {
		t.Activities = append([]string(nil), t.Activities...)
		out[i] = t
	}
	return out
}

// Scope returns the restriction scope.
func (p *Policy) Scope() Scope { return p.scope }

// Districts returns the declared districts in sorted order.
func (p *Policy) Districts() []string { return append([]string(nil), p.districts...) }

// StartDate returns the first day transitions may happen.
func (p *Policy) StartDate() time.Time { return p.start }

// scopeKeys lists the keys evaluated per step: global first, then districts.
func (p *Policy) scopeKeys() []string {
	keys := []string{Global}
	if p.scope == ScopeLocal {
		keys = append(keys, p.districts...)
	}
	return keys
}

func (p *Policy) hasDistrict(d string) bool {
	for _, x := range p.districts {
		if x == d {
			return true
		}
	}
	return false
}

// Resolve returns the restriction in force for activity region wide.
// Before the start date the initial policy governs. From the start date on
// the state must have been stepped to date.
func (p *Policy) Resolve(s *State, date time.Time, activity string) (restriction.Restriction, error) {
	day := model.Day(date)
	if day.Before(p.start) {
		return p.fromInitial(day, activity)
	}
	if err := s.checkStepped(day); err != nil {
		return restriction.Restriction{}, err
	}
	group, ok := p.groupOf[activity]
	if !ok {
		return p.fromInitial(day, activity)
	}
	return p.policyFor(s.regime(group, Global), day, activity)
}

// ResolveDistrict returns the restriction in force for activity in
// district. Under local scope the district's regime decides the district
// fraction, written as a locationBasedRf override on top of the global
// restriction. Only a district entry of the selected policy overrides;
// otherwise, and for undeclared districts, the global value stands.
func (p *Policy) ResolveDistrict(s *State, date time.Time, activity, district string) (restriction.Restriction, error) {
	global, err := p.Resolve(s, date, activity)
	if err != nil {
		return global, err
	}
	day := model.Day(date)
	if p.scope != ScopeLocal || day.Before(p.start) || !p.hasDistrict(district) {
		return global, nil
	}
	group, ok := p.groupOf[activity]
	if !ok {
		return global, nil
	}
	local, err := p.policyFor(s.regime(group, district), day, activity)
	if err != nil {
		return global, err
	}

	rf, ok := local.LocationBasedRf()[district]
	if !ok || rf == global.FractionFor(district) {
		return global, nil
	}
	override, err := restriction.OfLocationBasedRf(map[string]float64{district: rf})
	if err != nil {
		return global, err
	}
	return global.Merge(override), nil
}

// policyFor resolves activity in the policy matching regime, falling back to
// the initial policy when that policy does not know the activity.
func (p *Policy) policyFor(regime Regime, day time.Time, activity string) (restriction.Restriction, error) {
	var chosen *policy.Policy
	switch regime {
	case RegimeRestricted:
		chosen = p.restricted
	case RegimeOpen:
		chosen = p.open
	}
	if chosen.Has(activity) {
		return chosen.Resolve(day, activity)
	}
	return p.fromInitial(day, activity)
}

func (p *Policy) fromInitial(day time.Time, activity string) (restriction.Restriction, error) {
	if p.initial.Has(activity) {
		return p.initial.Resolve(day, activity)
	}
	if _, ok := p.groupOf[activity]; ok || p.restricted.Has(activity) || p.open.Has(activity) {
		return restriction.Restriction{}, nil
	}
	return restriction.Restriction{}, model.Configurationf("unknown activity %q", activity)
}
