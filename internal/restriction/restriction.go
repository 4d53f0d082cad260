// Package restriction defines the Restriction value: the set of NPI
// dimensions in force for one activity on one day.
package restriction

import (
	"fmt"
	"sort"
	"strings"
)

// Restriction is an immutable bag of optional restriction dimensions.
// The zero value restricts nothing.
type Restriction struct {
	a Attributes
}

// FromAttributes validates a and returns a Restriction holding a private copy.
func FromAttributes(a Attributes) (Restriction, error) {
	if err := a.Validate(); err != nil {
		return Restriction{}, err
	}
	c := a.Clone()
	if c.Closed != nil {
		c.Closed = normalizeIDs(c.Closed)
	}
	return Restriction{a: c}, nil
}

// Validate reports whether r still satisfies every constraint. Merging two
// valid restrictions can break cross-dimension rules such as the mask sum.
func (r Restriction) Validate() error {
	return r.a.Validate()
}

// Must panics if err is non-nil. Intended for statically known restrictions.
func Must(r Restriction, err error) Restriction {
	if err != nil {
		panic(err)
	}
	return r
}

// Of restricts the remaining fraction of activity participation.
func Of(fraction float64) (Restriction, error) {
	return FromAttributes(Attributes{Fraction: &fraction})
}

// OfCiCorrection sets the contact intensity multiplier.
func OfCiCorrection(ci float64) (Restriction, error) {
	return FromAttributes(Attributes{CiCorrection: &ci})
}

// OfMask sets compliance rates for several mask types.
func OfMask(rates map[Mask]float64) (Restriction, error) {
	if rates == nil {
		rates = map[Mask]float64{}
	}
	return FromAttributes(Attributes{Masks: rates})
}

// OfMaskType sets the compliance rate for a single mask type.
func OfMaskType(m Mask, rate float64) (Restriction, error) {
	return OfMask(map[Mask]float64{m: rate})
}

// OfClosingHours closes the activity daily from start to end (hours).
// OfClosingHours(0, 0) explicitly lifts closing hours.
func OfClosingHours(start, end int) (Restriction, error) {
	return FromAttributes(Attributes{ClosingHours: &ClosingHours{Start: start, End: end}})
}

// OfLocationBasedRf sets district specific remaining fractions.
func OfLocationBasedRf(rf map[string]float64) (Restriction, error) {
	if rf == nil {
		rf = map[string]float64{}
	}
	return FromAttributes(Attributes{LocationBasedRf: rf})
}

// OfSusceptibleRf sets the remaining fraction for susceptible persons.
func OfSusceptibleRf(rf float64) (Restriction, error) {
	return FromAttributes(Attributes{SusceptibleRf: &rf})
}

// OfVaccinatedRf sets the remaining fraction for vaccinated persons.
func OfVaccinatedRf(rf float64) (Restriction, error) {
	return FromAttributes(Attributes{VaccinatedRf: &rf})
}

// OfGroupSize caps the number of participants in a single activity.
func OfGroupSize(n int) (Restriction, error) {
	return FromAttributes(Attributes{MaxGroupSize: &n})
}

// OfClosedFacilities shuts the given facilities. Ids are deduplicated and
// sorted.
func OfClosedFacilities(ids ...string) (Restriction, error) {
	return FromAttributes(Attributes{Closed: normalizeIDs(ids)})
}

// OfReducedGroupSize sets the group size activities are reduced to.
func OfReducedGroupSize(n int) (Restriction, error) {
	return FromAttributes(Attributes{ReducedGroupSize: &n})
}

// None returns a restriction with every dimension explicitly open. Merged
// over an existing entry it lifts all earlier settings of that entry.
func None() Restriction {
	return Restriction{a: Attributes{
		Fraction:         Float(1),
		CiCorrection:     Float(1),
		MaxGroupSize:     Int(Unlimited),
		ReducedGroupSize: Int(Unlimited),
		ClosingHours:     &ClosingHours{},
		Masks:            map[Mask]float64{},
		LocationBasedRf:  map[string]float64{},
		SusceptibleRf:    Float(1),
		VaccinatedRf:     Float(1),
		Closed:           []string{},
	}}
}

// Attributes returns a private copy of the set dimensions.
func (r Restriction) Attributes() Attributes {
	return r.a.Clone()
}

// Merge returns a new restriction where every dimension set in other wins.
// Mask and district maps are unioned, other winning per key; an explicitly
// empty map in other clears the dimension.
func (r Restriction) Merge(other Restriction) Restriction {
	m := r.a.Clone()
	o := other.a
	if o.Fraction != nil {
		m.Fraction = cloneFloat(o.Fraction)
	}
	if o.CiCorrection != nil {
		m.CiCorrection = cloneFloat(o.CiCorrection)
	}
	if o.MaxGroupSize != nil {
		m.MaxGroupSize = cloneInt(o.MaxGroupSize)
	}
	if o.ReducedGroupSize != nil {
		m.ReducedGroupSize = cloneInt(o.ReducedGroupSize)
	}
	if o.ClosingHours != nil {
		ch := *o.ClosingHours
		m.ClosingHours = &ch
	}
	if o.SusceptibleRf != nil {
		m.SusceptibleRf = cloneFloat(o.SusceptibleRf)
	}
	if o.VaccinatedRf != nil {
		m.VaccinatedRf = cloneFloat(o.VaccinatedRf)
	}
	if o.Closed != nil {
		m.Closed = append(make([]string, 0, len(o.Closed)), o.Closed...)
	}
	switch {
	case o.Masks == nil:
	case len(o.Masks) == 0:
		m.Masks = map[Mask]float64{}
	default:
		if m.Masks == nil {
			m.Masks = make(map[Mask]float64, len(o.Masks))
		}
		for k, v := range o.Masks {
			m.Masks[k] = v
		}
	}
	switch {
	case o.LocationBasedRf == nil:
	case len(o.LocationBasedRf) == 0:
		m.LocationBasedRf = map[string]float64{}
	default:
		if m.LocationBasedRf == nil {
			m.LocationBasedRf = make(map[string]float64, len(o.LocationBasedRf))
		}
		for k, v := range o.LocationBasedRf {
			m.LocationBasedRf[k] = v
		}
	}
	return Restriction{a: m}
}

// Equal reports whether both restrictions set the same dimensions to the
// same values. An explicitly empty map differs from an unset one.
func (r Restriction) Equal(other Restriction) bool {
	a, b := r.a, other.a
	if !eqFloat(a.Fraction, b.Fraction) || !eqFloat(a.CiCorrection, b.CiCorrection) ||
		!eqFloat(a.SusceptibleRf, b.SusceptibleRf) || !eqFloat(a.VaccinatedRf, b.VaccinatedRf) {
		return false
	}
	if !eqInt(a.MaxGroupSize, b.MaxGroupSize) || !eqInt(a.ReducedGroupSize, b.ReducedGroupSize) {
		return false
	}
	if (a.ClosingHours == nil) != (b.ClosingHours == nil) {
		return false
	}
	if a.ClosingHours != nil && *a.ClosingHours != *b.ClosingHours {
		return false
	}
	if (a.Masks == nil) != (b.Masks == nil) || len(a.Masks) != len(b.Masks) {
		return false
	}
	for k, v := range a.Masks {
		if w, ok := b.Masks[k]; !ok || w != v {
			return false
		}
	}
	if (a.LocationBasedRf == nil) != (b.LocationBasedRf == nil) || len(a.LocationBasedRf) != len(b.LocationBasedRf) {
		return false
	}
	for k, v := range a.LocationBasedRf {
		if w, ok := b.LocationBasedRf[k]; !ok || w != v {
			return false
		}
	}
	if (a.Closed == nil) != (b.Closed == nil) || len(a.Closed) != len(b.Closed) {
		return false
	}
	for i := range a.Closed {
		if a.Closed[i] != b.Closed[i] {
			return false
		}
	}
	return true
}

// IsOpen reports whether the effective values restrict nothing.
func (r Restriction) IsOpen() bool {
	if r.RemainingFraction() != 1 || r.CiCorrection() != 1 {
		return false
	}
	if _, ok := r.ClosingHours(); ok {
		return false
	}
	if _, ok := r.MaxGroupSize(); ok {
		return false
	}
	if _, ok := r.ReducedGroupSize(); ok {
		return false
	}
	if v, ok := r.SusceptibleRf(); ok && v != 1 {
		return false
	}
	if v, ok := r.VaccinatedRf(); ok && v != 1 {
		return false
	}
	for _, v := range r.a.Masks {
		if v > 0 {
			return false
		}
	}
	for _, v := range r.a.LocationBasedRf {
		if v != 1 {
			return false
		}
	}
	return len(r.a.Closed) == 0
}

// RemainingFraction returns the fraction of participation left, 1 if unset.
func (r Restriction) RemainingFraction() float64 {
	if r.a.Fraction == nil {
		return 1
	}
	return *r.a.Fraction
}

// CiCorrection returns the contact intensity multiplier, 1 if unset.
func (r Restriction) CiCorrection() float64 {
	if r.a.CiCorrection == nil {
		return 1
	}
	return *r.a.CiCorrection
}

// ClosingHours returns the daily closing window. ok is false when unset or
// explicitly lifted.
func (r Restriction) ClosingHours() (ClosingHours, bool) {
	ch := r.a.ClosingHours
	if ch == nil || ch.Start == ch.End {
		return ClosingHours{}, false
	}
	return *ch, true
}

// MaskCompliance returns a copy of the mask compliance rates.
func (r Restriction) MaskCompliance() map[Mask]float64 {
	out := make(map[Mask]float64, len(r.a.Masks))
	for k, v := range r.a.Masks {
		out[k] = v
	}
	return out
}

// LocationBasedRf returns a copy of the district overrides.
func (r Restriction) LocationBasedRf() map[string]float64 {
	out := make(map[string]float64, len(r.a.LocationBasedRf))
	for k, v := range r.a.LocationBasedRf {
		out[k] = v
	}
	return out
}

// FractionFor returns the district override if present, else the global
// remaining fraction.
func (r Restriction) FractionFor(district string) float64 {
	if v, ok := r.a.LocationBasedRf[district]; ok {
		return v
	}
	return r.RemainingFraction()
}

func (r Restriction) SusceptibleRf() (float64, bool) {
	if r.a.SusceptibleRf == nil {
		return 0, false
	}
	return *r.a.SusceptibleRf, true
}

func (r Restriction) VaccinatedRf() (float64, bool) {
	if r.a.VaccinatedRf == nil {
		return 0, false
	}
	return *r.a.VaccinatedRf, true
}

// MaxGroupSize returns the participant cap; ok is false when uncapped.
func (r Restriction) MaxGroupSize() (int, bool) {
	if r.a.MaxGroupSize == nil || *r.a.MaxGroupSize >= Unlimited {
		return 0, false
	}
	return *r.a.MaxGroupSize, true
}

// ReducedGroupSize returns the reduced group size; ok is false when unset.
func (r Restriction) ReducedGroupSize() (int, bool) {
	if r.a.ReducedGroupSize == nil || *r.a.ReducedGroupSize >= Unlimited {
		return 0, false
	}
	return *r.a.ReducedGroupSize, true
}

// IsClosed reports whether facility is shut by this restriction.
func (r Restriction) IsClosed(facility string) bool {
	i := sort.SearchStrings(r.a.Closed, facility)
	return i < len(r.a.Closed) && r.a.Closed[i] == facility
}

// ClosedFacilities returns the ids of shut facilities, sorted.
func (r Restriction) ClosedFacilities() []string {
	return append([]string(nil), r.a.Closed...)
}

// String renders the set dimensions in a stable order, for logs.
func (r Restriction) String() string {
	var parts []string
	if r.a.Fraction != nil {
		parts = append(parts, fmt.Sprintf("fraction=%.2f", *r.a.Fraction))
	}
	if r.a.CiCorrection != nil {
		parts = append(parts, fmt.Sprintf("ci=%.2f", *r.a.CiCorrection))
	}
	if ch := r.a.ClosingHours; ch != nil {
		parts = append(parts, fmt.Sprintf("closing=%d-%d", ch.Start, ch.End))
	}
	if len(r.a.Masks) > 0 {
		masks := make([]string, 0, len(r.a.Masks))
		for _, m := range sortedMasks(r.a.Masks) {
			masks = append(masks, fmt.Sprintf("%s:%.2f", m, r.a.Masks[m]))
		}
		parts = append(parts, "masks="+strings.Join(masks, ","))
	}
	if len(r.a.LocationBasedRf) > 0 {
		keys := sortedKeys(r.a.LocationBasedRf)
		rf := make([]string, 0, len(keys))
		for _, k := range keys {
			rf = append(rf, fmt.Sprintf("%s:%.2f", k, r.a.LocationBasedRf[k]))
		}
		parts = append(parts, "locationRf="+strings.Join(rf, ","))
	}
	if len(r.a.Closed) > 0 {
		parts = append(parts, "closed="+strings.Join(r.a.Closed, ","))
	}
	if len(parts) == 0 {
		return "open"
	}
	return strings.Join(parts, " ")
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
