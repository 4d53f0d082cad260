package policy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Edit is one operation of the schedule editing algebra. The set of
// variants is closed; every ConfigBuilder method builds one of them.
type Edit interface {
	apply(b *ConfigBuilder) error
}

// Transform rewrites the attributes of one dated entry. It receives a
// private copy and may mutate and return it.
type Transform func(date time.Time, a restriction.Attributes) restriction.Attributes

// RfFunc maps the old remaining fraction of a dated entry to a new one.
type RfFunc func(date time.Time, fraction float64) float64

// RestrictEdit merges Restriction over the entry at Date.
type RestrictEdit struct {
	Date        string
	Restriction restriction.Restriction
	Activities  []string
}

// OpenEdit lifts every dimension at Date.
type OpenEdit struct {
	Date       string
	Activities []string
}

// ClearAfterEdit removes entries strictly after Date. No activities means all.
type ClearAfterEdit struct {
	Date       string
	Activities []string
}

// ApplyEdit transforms every entry within [From, To]. No activities means all.
type ApplyEdit struct {
	From, To   string
	Transform  Transform
	Activities []string
}

// ApplyToRfEdit rewrites the remaining fraction of entries within [From, To].
// Entries without a fraction are skipped.
type ApplyToRfEdit struct {
	From, To   string
	Fn         RfFunc
	Activities []string
}

// InterpolateEdit writes one entry per day from Start to End (inclusive),
// linearly interpolating fraction and ciCorrection between From and To.
// Other dimensions are copied from From.
type InterpolateEdit struct {
	Start, End string
	From, To   restriction.Restriction
	Activities []string
}

// DeclareEdit registers activities without entries.
type DeclareEdit struct {
	Activities []string
}

func (e RestrictEdit) apply(b *ConfigBuilder) error {
	if err := checkActivities("restrict", e.Activities); err != nil {
		return err
	}
	date, err := parseDate("restrict", e.Date)
	if err != nil {
		return err
	}
	for _, a := range e.Activities {
		if err := b.timeline(a).put(date, e.Restriction); err != nil {
			return fmt.Errorf("restrict %s on %s: %w", a, e.Date, err)
		}
	}
	return nil
}

func (e OpenEdit) apply(b *ConfigBuilder) error {
	return RestrictEdit{Date: e.Date, Restriction: restriction.None(), Activities: e.Activities}.apply(b)
}

func (e ClearAfterEdit) apply(b *ConfigBuilder) error {
	date, err := parseDate("clear_after", e.Date)
	if err != nil {
		return err
	}
	for _, a := range b.scope(e.Activities) {
		tl, ok := b.timelines[a]
		if !ok {
			b.logger.Warn("clear_after on activity without entries", zap.String("activity", a))
			continue
		}
		if n := tl.clearAfter(date); n > 0 {
			b.logger.Debug("entries cleared", zap.String("activity", a), zap.Int("count", n))
		}
	}
	return nil
}

func (e ApplyEdit) apply(b *ConfigBuilder) error {
	if e.Transform == nil {
		return model.Configurationf("apply: transform is nil")
	}
	from, to, err := parseRange("apply", e.From, e.To)
	if err != nil {
		return err
	}
	for _, a := range b.scope(e.Activities) {
		tl, ok := b.timelines[a]
		if !ok {
			continue
		}
		for i, entry := range tl.entries {
			if entry.Date.Before(from) || entry.Date.After(to) {
				continue
			}
			attrs := e.Transform(entry.Date, entry.Restriction.Attributes())
			r, err := restriction.FromAttributes(attrs)
			if err != nil {
				return fmt.Errorf("apply %s on %s: %w", a, model.FormatDate(entry.Date), err)
			}
			tl.replace(i, r)
		}
	}
	return nil
}

func (e ApplyToRfEdit) apply(b *ConfigBuilder) error {
	if e.Fn == nil {
		return model.Configurationf("apply_to_rf: function is nil")
	}
	return ApplyEdit{
		From: e.From,
		To:   e.To,
		Transform: func(date time.Time, a restriction.Attributes) restriction.Attributes {
			if a.Fraction != nil {
				a.Fraction = restriction.Float(e.Fn(date, *a.Fraction))
			}
			return a
		},
		Activities: e.Activities,
	}.apply(b)
}

func (e InterpolateEdit) apply(b *ConfigBuilder) error {
	if err := checkActivities("interpolate", e.Activities); err != nil {
		return err
	}
	start, end, err := parseRange("interpolate", e.Start, e.End)
	if err != nil {
		return err
	}
	base := e.From.Attributes()
	target := e.To.Attributes()
	rf0, rf1 := valueOrNaN(base.Fraction), valueOrNaN(target.Fraction)
	ci0, ci1 := valueOrNaN(base.CiCorrection), valueOrNaN(target.CiCorrection)
	if math.IsNaN(rf0+rf1) && math.IsNaN(ci0+ci1) {
		return model.Configurationf("interpolate %s: fraction and ciCorrection are both undefined", e.Start)
	}

	days := int(end.Sub(start).Hours() / 24)
	for d := 0; d <= days; d++ {
		t := 0.0
		if days > 0 {
			t = float64(d) / float64(days)
		}
		attrs := base.Clone()
		attrs.Fraction = lerp(rf0, rf1, t)
		attrs.CiCorrection = lerp(ci0, ci1, t)
		r, err := restriction.FromAttributes(attrs)
		if err != nil {
			return fmt.Errorf("interpolate: %w", err)
		}
		date := start.AddDate(0, 0, d)
		for _, a := range e.Activities {
			if err := b.timeline(a).put(date, r); err != nil {
				return fmt.Errorf("interpolate %s: %w", a, err)
			}
		}
	}
	return nil
}

func (e DeclareEdit) apply(b *ConfigBuilder) error {
	if err := checkActivities("declare", e.Activities); err != nil {
		return err
	}
	for _, a := range e.Activities {
		b.timeline(a)
	}
	return nil
}

func checkActivities(op string, activities []string) error {
	if len(activities) == 0 {
		return model.Configurationf("%s: no activity given", op)
	}
	for _, a := range activities {
		if a == "" {
			return model.Configurationf("%s: empty activity name", op)
		}
	}
	return nil
}

func parseDate(op, s string) (time.Time, error) {
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, model.Configurationf("%s: %v", op, err)
	}
	return d, nil
}

func parseRange(op, from, to string) (time.Time, time.Time, error) {
	f, err := parseDate(op, from)
	if err != nil {
		return f, f, err
	}
	t, err := parseDate(op, to)
	if err != nil {
		return f, t, err
	}
	if t.Before(f) {
		return f, t, model.Configurationf("%s: range end %s before start %s", op, to, from)
	}
	return f, t, nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func lerp(a, b, t float64) *float64 {
	v := (1-t)*a + t*b
	if a == b {
		v = a
	}
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
