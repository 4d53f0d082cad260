package adaptive

import (
	"time"

	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Session pairs a Policy with the State of one simulation run. It is the
// runtime port handed to the contact model.
type Session struct {
	policy *Policy
	state  *State
}

var _ policy.DistrictResolver = (*Session)(nil)

// NewSession starts a simulation run with a fresh state.
func (p *Policy) NewSession() *Session {
	return &Session{policy: p, state: p.NewState()}
}

func (s *Session) Policy() *Policy { return s.policy }
func (s *Session) State() *State   { return s.state }

// ReportIncidence feeds the day's incidence for group in scope.
func (s *Session) ReportIncidence(scope, group string, value float64) error {
	return s.state.ReportIncidence(scope, group, value)
}

// Step advances the run to date.
func (s *Session) Step(date time.Time) ([]Transition, error) {
	return s.policy.Step(s.state, date)
}

func (s *Session) Resolve(date time.Time, activity string) (restriction.Restriction, error) {
	return s.policy.Resolve(s.state, date, activity)
}

func (s *Session) ResolveDistrict(date time.Time, activity, district string) (restriction.Restriction, error) {
	return s.policy.ResolveDistrict(s.state, date, activity, district)
}

// Regime returns the current regime of group in scope.
func (s *Session) Regime(group, scope string) (Regime, bool) {
	return s.state.Regime(group, scope)
}
