package policy

import (
	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// ConfigBuilder accumulates schedule edits and freezes them into a Policy.
// Methods chain; the first failing edit is kept and returned by Build.
// A ConfigBuilder is not safe for concurrent use.
type ConfigBuilder struct {
	timelines map[string]*Timeline
	err       error
	built     bool
	logger    *zap.Logger
}

// Option configures a ConfigBuilder.
type Option func(*ConfigBuilder)

// WithLogger sets the logger used for builder warnings.
func WithLogger(l *zap.Logger) Option {
	return func(b *ConfigBuilder) {
		if l != nil {
			b.logger = l.Named("policy")
		}
	}
}

// Config returns an empty builder.
func Config(opts ...Option) *ConfigBuilder {
	b := &ConfigBuilder{
		timelines: make(map[string]*Timeline),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Parse returns a builder seeded with the timelines of p.
func Parse(p *Policy, opts ...Option) *ConfigBuilder {
	b := Config(opts...)
	if p == nil {
		return b
	}
	for name, tl := range p.timelines {
		b.timelines[name] = tl.clone()
	}
	return b
}

// ParseDocument returns a builder seeded with doc. Malformed dates are
// reported by Build.
func ParseDocument(doc Document, opts ...Option) *ConfigBuilder {
	p, err := FromDocument(doc)
	b := Parse(p, opts...)
	if err != nil {
		b.err = err
	}
	return b
}

// Edit applies edits in order. After the first error further edits are ignored.
func (b *ConfigBuilder) Edit(edits ...Edit) *ConfigBuilder {
	for _, e := range edits {
		if b.err != nil {
			return b
		}
		if b.built {
			b.err = model.Configurationf("builder already built")
			return b
		}
		b.err = e.apply(b)
	}
	return b
}

// Restrict merges r over the entry at date for every activity.
func (b *ConfigBuilder) Restrict(date string, r restriction.Restriction, activities ...string) *ConfigBuilder {
	return b.Edit(RestrictEdit{Date: date, Restriction: r, Activities: activities})
}

// RestrictFraction is Restrict with restriction.Of(fraction).
func (b *ConfigBuilder) RestrictFraction(date string, fraction float64, activities ...string) *ConfigBuilder {
	r, err := restriction.Of(fraction)
	if err != nil {
		return b.fail(err)
	}
	return b.Restrict(date, r, activities...)
}

// Open lifts every restriction dimension at date.
func (b *ConfigBuilder) Open(date string, activities ...string) *ConfigBuilder {
	return b.Edit(OpenEdit{Date: date, Activities: activities})
}

// ClearAfter removes every entry strictly after date. Without activities
// all timelines are cleared.
func (b *ConfigBuilder) ClearAfter(date string, activities ...string) *ConfigBuilder {
	return b.Edit(ClearAfterEdit{Date: date, Activities: activities})
}

// Apply replaces every entry within [from, to] with the transformed copy
// of its attributes.
func (b *ConfigBuilder) Apply(from, to string, fn Transform, activities ...string) *ConfigBuilder {
	return b.Edit(ApplyEdit{From: from, To: to, Transform: fn, Activities: activities})
}

// ApplyToRf rewrites remaining fractions within [from, to].
func (b *ConfigBuilder) ApplyToRf(from, to string, fn RfFunc, activities ...string) *ConfigBuilder {
	return b.Edit(ApplyToRfEdit{From: from, To: to, Fn: fn, Activities: activities})
}

// Interpolate writes daily entries between start and end.
func (b *ConfigBuilder) Interpolate(start, end string, from, to restriction.Restriction, activities ...string) *ConfigBuilder {
	return b.Edit(InterpolateEdit{Start: start, End: end, From: from, To: to, Activities: activities})
}

// Declare registers activities that have no entries yet.
func (b *ConfigBuilder) Declare(activities ...string) *ConfigBuilder {
	return b.Edit(DeclareEdit{Activities: activities})
}

// Err returns the first recorded error.
func (b *ConfigBuilder) Err() error { return b.err }

// Build freezes the accumulated timelines. A builder can be built once.
func (b *ConfigBuilder) Build() (*Policy, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built {
		return nil, model.Configurationf("builder already built")
	}
	b.built = true

	p := &Policy{
		timelines:  make(map[string]Timeline, len(b.timelines)),
		activities: sortedNames(b.timelines),
	}
	for name, tl := range b.timelines {
		p.timelines[name] = Timeline{entries: tl.Entries()}
	}
	b.logger.Debug("policy built", zap.Int("activities", len(p.activities)))
	return p, nil
}

func (b *ConfigBuilder) fail(err error) *ConfigBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *ConfigBuilder) timeline(activity string) *Timeline {
	tl, ok := b.timelines[activity]
	if !ok {
		tl = &Timeline{}
		b.timelines[activity] = tl
	}
	return tl
}

// scope returns the named activities, or every known activity when none
// are named.
func (b *ConfigBuilder) scope(activities []string) []string {
	if len(activities) > 0 {
		return activities
	}
	return sortedNames(b.timelines)
}
