package restriction

import (
	"math"
	"sort"

	"github.com/ppiankov/npipolicy/internal/model"
)

// Mask is a face mask type that can be required by a restriction.
type Mask string

const (
	MaskNone     Mask = "NONE"
	MaskCloth    Mask = "CLOTH"
	MaskSurgical Mask = "SURGICAL"
	MaskN95      Mask = "N95"
)

// maskOrder is the canonical order used for cumulative mask draws.
var maskOrder = []Mask{MaskCloth, MaskSurgical, MaskN95}

// ParseMask maps a mask name to a Mask. NONE is not a valid compliance key.
func ParseMask(s string) (Mask, bool) {
	for _, m := range maskOrder {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Unlimited is the group size meaning "no cap". None sets it so that opening
// an activity also lifts earlier caps on the same date.
const Unlimited = math.MaxInt32

// ClosingHours is a daily window [Start, End) in hours during which an
// activity is unavailable. Start > End wraps midnight; Start == End means no
// closing hours.
type ClosingHours struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Attributes is the editable representation of a Restriction. A nil field is
// an unset dimension. Transforms passed to policy.ConfigBuilder.Apply receive
// a private copy and return the replacement.
type Attributes struct {
	Fraction         *float64
	CiCorrection     *float64
	MaxGroupSize     *int
	ReducedGroupSize *int
	ClosingHours     *ClosingHours
	Masks            map[Mask]float64
	LocationBasedRf  map[string]float64
	SusceptibleRf    *float64
	VaccinatedRf     *float64
	// Closed lists facility ids that are shut entirely. An empty, non-nil
	// slice reopens all of them.
	Closed []string
}

// Float returns a pointer to v, for building Attributes literals.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Attributes literals.
func Int(v int) *int { return &v }

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	c := Attributes{
		Fraction:         cloneFloat(a.Fraction),
		CiCorrection:     cloneFloat(a.CiCorrection),
		MaxGroupSize:     cloneInt(a.MaxGroupSize),
		ReducedGroupSize: cloneInt(a.ReducedGroupSize),
		SusceptibleRf:    cloneFloat(a.SusceptibleRf),
		VaccinatedRf:     cloneFloat(a.VaccinatedRf),
	}
	if a.ClosingHours != nil {
		ch := *a.ClosingHours
		c.ClosingHours = &ch
	}
	if a.Masks != nil {
		c.Masks = make(map[Mask]float64, len(a.Masks))
		for k, v := range a.Masks {
			c.Masks[k] = v
		}
	}
	if a.LocationBasedRf != nil {
		c.LocationBasedRf = make(map[string]float64, len(a.LocationBasedRf))
		for k, v := range a.LocationBasedRf {
			c.LocationBasedRf[k] = v
		}
	}
	if a.Closed != nil {
		c.Closed = append(make([]string, 0, len(a.Closed)), a.Closed...)
	}
	return c
}

// Validate checks every set dimension.
func (a Attributes) Validate() error {
	if err := checkFraction("fraction", a.Fraction); err != nil {
		return err
	}
	if err := checkFraction("susceptibleRf", a.SusceptibleRf); err != nil {
		return err
	}
	if err := checkFraction("vaccinatedRf", a.VaccinatedRf); err != nil {
		return err
	}
	if a.CiCorrection != nil {
		v := *a.CiCorrection
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &model.ValidationError{Field: "ciCorrection", Value: v, Reason: "must be a finite value >= 0"}
		}
	}
	if err := checkCapacity("maxGroupSize", a.MaxGroupSize); err != nil {
		return err
	}
	if err := checkCapacity("reducedGroupSize", a.ReducedGroupSize); err != nil {
		return err
	}
	if ch := a.ClosingHours; ch != nil {
		if ch.Start < 0 || ch.Start >= 24 {
			return &model.ValidationError{Field: "closingHours.start", Value: ch.Start, Reason: "hour must be within [0, 24)"}
		}
		if ch.End < 0 || ch.End >= 24 {
			return &model.ValidationError{Field: "closingHours.end", Value: ch.End, Reason: "hour must be within [0, 24)"}
		}
	}
	sum := 0.0
	for _, m := range sortedMasks(a.Masks) {
		if _, ok := ParseMask(string(m)); !ok {
			return &model.ValidationError{Field: "masks", Value: m, Reason: "unknown mask type"}
		}
		v := a.Masks[m]
		if err := checkFraction("masks."+string(m), &v); err != nil {
			return err
		}
		sum += v
	}
	if sum > 1+maskSumTolerance {
		return &model.ValidationError{Field: "masks", Value: sum, Reason: "sum of mask compliance rates must not exceed 1"}
	}
	for _, id := range a.Closed {
		if id == "" {
			return &model.ValidationError{Field: "closed", Value: id, Reason: "facility id must not be empty"}
		}
	}
	for _, d := range sortedKeys(a.LocationBasedRf) {
		if d == "" {
			return &model.ValidationError{Field: "locationBasedRf", Value: d, Reason: "district name must not be empty"}
		}
		v := a.LocationBasedRf[d]
		if err := checkFraction("locationBasedRf."+d, &v); err != nil {
			return err
		}
	}
	return nil
}

// maskSumTolerance absorbs float error in rates like 0.1+0.2+0.7.
const maskSumTolerance = 1e-9

func checkFraction(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return &model.ValidationError{Field: field, Value: *v, Reason: "must be within [0, 1]"}
	}
	return nil
}

func checkCapacity(field string, v *int) error {
	if v != nil && *v < 0 {
		return &model.ValidationError{Field: field, Value: *v, Reason: "capacity must not be negative"}
	}
	return nil
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sortedMasks(m map[Mask]float64) []Mask {
	keys := make([]Mask, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
