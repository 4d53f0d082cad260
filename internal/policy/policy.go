// Package policy holds fixed NPI schedules: per activity timelines of
// restrictions, the builder that edits them, and their document form.
package policy

import (
	"time"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Resolver answers which restriction is in force for an activity on a day.
type Resolver interface {
	Resolve(date time.Time, activity string) (restriction.Restriction, error)
}

// DistrictResolver additionally resolves per district.
type DistrictResolver interface {
	Resolver
	ResolveDistrict(date time.Time, activity, district string) (restriction.Restriction, error)
}

// Policy is a frozen set of timelines. It is immutable and safe for
// concurrent use.
type Policy struct {
	timelines  map[string]Timeline
	activities []string
}

var _ DistrictResolver = (*Policy)(nil)

// Resolve returns the restriction of the latest entry on or before date.
// Before the first entry the activity is open. Unknown activities are a
// ConfigurationError.
func (p *Policy) Resolve(date time.Time, activity string) (restriction.Restriction, error) {
	tl, ok := p.timelines[activity]
	if !ok {
		return restriction.Restriction{}, model.Configurationf("unknown activity %q", activity)
	}
	r, _ := tl.At(model.Day(date))
	return r, nil
}

// ResolveDistrict resolves like Resolve. District overrides are part of the
// restriction and read with FractionFor.
func (p *Policy) ResolveDistrict(date time.Time, activity, _ string) (restriction.Restriction, error) {
	return p.Resolve(date, activity)
}

// ResolveAll resolves every known activity for one day.
func (p *Policy) ResolveAll(date time.Time) map[string]restriction.Restriction {
	out := make(map[string]restriction.Restriction, len(p.activities))
	day := model.Day(date)
	for _, a := range p.activities {
		r, _ := p.timelines[a].At(day)
		out[a] = r
	}
	return out
}

// Has reports whether the policy knows activity.
func (p *Policy) Has(activity string) bool {
	if p == nil {
		return false
	}
	_, ok := p.timelines[activity]
	return ok
}

// Activities returns the known activities in sorted order.
func (p *Policy) Activities() []string {
	out := make([]string, len(p.activities))
	copy(out, p.activities)
	return out
}

// Timeline returns the schedule of one activity.
func (p *Policy) Timeline(activity string) (Timeline, bool) {
	tl, ok := p.timelines[activity]
	return tl, ok
}

// Equal reports whether both policies hold the same timelines.
func (p *Policy) Equal(o *Policy) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.timelines) != len(o.timelines) {
		return false
	}
	for name, tl := range p.timelines {
		other, ok := o.timelines[name]
		if !ok || !tl.equal(other) {
			return false
		}
	}
	return true
}
