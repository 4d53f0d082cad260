package scenario

import (
	"fmt"
	"time"

	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Edit operations accepted in scenario files.
const (
	OpRestrict        = "restrict"
	OpOpen            = "open"
	OpClearAfter      = "clear_after"
	OpScaleRf         = "scale_rf"
	OpScaleReduction  = "scale_reduction"
	OpSetLocationRf   = "set_location_rf"
	OpClearLocationRf = "clear_location_rf"
	OpInterpolate     = "interpolate"
)

// ToEdit converts the YAML form into a policy edit.
func (e EditSpec) ToEdit() (policy.Edit, error) {
	switch e.Op {
	case OpRestrict:
		if e.Set == nil {
			return nil, fmt.Errorf("%s: restriction is required", e.Op)
		}
		return policy.RestrictEdit{Date: e.Date, Restriction: *e.Set, Activities: e.Activities}, nil

	case OpOpen:
		return policy.OpenEdit{Date: e.Date, Activities: e.Activities}, nil

	case OpClearAfter:
		return policy.ClearAfterEdit{Date: e.Date, Activities: e.Activities}, nil

	case OpScaleRf:
		if e.Factor == nil {
			return nil, fmt.Errorf("%s: factor is required", e.Op)
		}
		factor := *e.Factor
		return policy.ApplyToRfEdit{
			From: e.From, To: e.To, Activities: e.Activities,
			Fn: func(_ time.Time, rf float64) float64 { return rf * factor },
		}, nil

	case OpScaleReduction:
		if e.Factor == nil {
			return nil, fmt.Errorf("%s: factor is required", e.Op)
		}
		factor := *e.Factor
		return policy.ApplyToRfEdit{
			From: e.From, To: e.To, Activities: e.Activities,
			Fn: func(_ time.Time, rf float64) float64 { return 1 - (1-rf)*factor },
		}, nil

	case OpSetLocationRf:
		if e.District == "" || e.Value == nil {
			return nil, fmt.Errorf("%s: district and value are required", e.Op)
		}
		district, value := e.District, *e.Value
		return policy.ApplyEdit{
			From: e.From, To: e.To, Activities: e.Activities,
			Transform: func(_ time.Time, a restriction.Attributes) restriction.Attributes {
				if a.LocationBasedRf == nil {
					a.LocationBasedRf = make(map[string]float64)
				}
				a.LocationBasedRf[district] = value
				return a
			},
		}, nil

	case OpClearLocationRf:
		district := e.District
		return policy.ApplyEdit{
			From: e.From, To: e.To, Activities: e.Activities,
			Transform: func(_ time.Time, a restriction.Attributes) restriction.Attributes {
				if district == "" {
					a.LocationBasedRf = nil
				} else {
					delete(a.LocationBasedRf, district)
				}
				return a
			},
		}, nil

	case OpInterpolate:
		if e.Start == nil || e.End == nil {
			return nil, fmt.Errorf("%s: start and end restrictions are required", e.Op)
		}
		return policy.InterpolateEdit{
			Start: e.From, End: e.To,
			From: *e.Start, To: *e.End,
			Activities: e.Activities,
		}, nil

	default:
		return nil, fmt.Errorf("unknown edit op %q", e.Op)
	}
}

// Edits converts every spec, reporting the first failure by position.
func Edits(specs []EditSpec) ([]policy.Edit, error) {
	out := make([]policy.Edit, 0, len(specs))
	for i, s := range specs {
		e, err := s.ToEdit()
		if err != nil {
			return nil, fmt.Errorf("edits[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
