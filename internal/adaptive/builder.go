package adaptive

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
)

// Option configures the runtime hooks of a Policy.
type Option func(*Policy)

// WithLogger logs regime transitions.
func WithLogger(l *zap.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l.Named("adaptive")
		}
	}
}

// WithMetrics reports incidence, regimes and transitions to o.
func WithMetrics(o Observer) Option {
	return func(p *Policy) { p.observer = o }
}

// WithJournal records every transition with r.
func WithJournal(r Recorder) Option {
	return func(p *Policy) { p.recorder = r }
}

// Builder assembles an adaptive Policy. The first error is kept and
// returned by Build.
type Builder struct {
	triggers      []Trigger
	initial       *policy.Policy
	restricted    *policy.Policy
	open          *policy.Policy
	start         time.Time
	scope         Scope
	districts     []string
	openAfterDays int
	opts          []Option
	err           error
	built         bool
}

// Config returns an empty builder with global scope and no start date.
func Config(opts ...Option) *Builder {
	return &Builder{
		start:         model.Beginning,
		scope:         ScopeGlobal,
		openAfterDays: 1,
		opts:          opts,
	}
}

// With adds runtime hooks applied at Build.
func (b *Builder) With(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// IncidenceTrigger restricts the activities of group once incidence reaches
// enter and opens them again once it falls to exit or below.
func (b *Builder) IncidenceTrigger(group string, enter, exit float64, activities ...string) *Builder {
	b.triggers = append(b.triggers, Trigger{
		Group:      group,
		Activities: append([]string(nil), activities...),
		Enter:      enter,
		Exit:       exit,
	})
	return b
}

// InitialPolicy governs before the start date and for groups that never
// transitioned.
func (b *Builder) InitialPolicy(p *policy.Policy) *Builder {
	b.initial = p
	return b
}

func (b *Builder) RestrictedPolicy(p *policy.Policy) *Builder {
	b.restricted = p
	return b
}

func (b *Builder) OpenPolicy(p *policy.Policy) *Builder {
	b.open = p
	return b
}

// StartDate sets the first day on which transitions may happen.
func (b *Builder) StartDate(date string) *Builder {
	d, err := model.ParseDate(date)
	if err != nil {
		return b.fail(model.Configurationf("start date: %v", err))
	}
	b.start = d
	return b
}

func (b *Builder) RestrictionScope(s Scope) *Builder {
	b.scope = s
	return b
}

// Districts declares the districts tracked under local scope.
func (b *Builder) Districts(districts ...string) *Builder {
	b.districts = append(b.districts, districts...)
	return b
}

// OpenAfterDays sets how many consecutive days at or below the exit
// threshold are required before a restricted group opens. Default 1.
func (b *Builder) OpenAfterDays(n int) *Builder {
	b.openAfterDays = n
	return b
}

// Build validates the configuration and freezes it.
func (b *Builder) Build() (*Policy, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.built {
		return nil, model.Configurationf("builder already built")
	}
	if b.restricted == nil {
		return nil, model.Configurationf("restricted policy is missing")
	}
	if b.open == nil {
		return nil, model.Configurationf("open policy is missing")
	}
	if b.openAfterDays < 1 {
		return nil, model.Configurationf("open after days must be at least 1, got %d", b.openAfterDays)
	}

	p := &Policy{
		groupOf:       make(map[string]string),
		initial:       b.initial,
		restricted:    b.restricted,
		open:          b.open,
		start:         b.start,
		scope:         b.scope,
		openAfterDays: b.openAfterDays,
		logger:        zap.NewNop(),
	}

	switch b.scope {
	case ScopeGlobal, ScopeLocal:
	default:
		return nil, model.Configurationf("unknown restriction scope %q", b.scope)
	}

	seen := make(map[string]bool)
	for _, d := range b.districts {
		if d == "" || d == Global {
			return nil, model.Configurationf("invalid district name %q", d)
		}
		if !seen[d] {
			seen[d] = true
			p.districts = append(p.districts, d)
		}
	}
	sort.Strings(p.districts)
	if b.scope == ScopeLocal && len(p.districts) == 0 {
		return nil, model.Configurationf("local restriction scope requires districts")
	}

	groups := make(map[string]bool)
	for _, t := range b.triggers {
		if err := b.checkTrigger(t); err != nil {
			return nil, err
		}
		if groups[t.Group] {
			return nil, model.Configurationf("group %q defined twice", t.Group)
		}
		groups[t.Group] = true

		t.Activities = dedupe(t.Activities)
		for _, a := range t.Activities {
			if other, ok := p.groupOf[a]; ok {
				return nil, model.Configurationf("activity %q is in groups %q and %q", a, other, t.Group)
			}
			p.groupOf[a] = t.Group
		}
		p.triggers = append(p.triggers, t)
	}
	sort.Slice(p.triggers, func(i, j int) bool { return p.triggers[i].Group < p.triggers[j].Group })

	for _, opt := range b.opts {
		opt(p)
	}
	b.built = true
	p.logger.Debug("adaptive policy built",
		zap.Int("groups", len(p.triggers)),
		zap.String("scope", string(p.scope)),
		zap.Int("districts", len(p.districts)))
	return p, nil
}

func (b *Builder) checkTrigger(t Trigger) error {
	if t.Group == "" {
		return model.Configurationf("incidence trigger without group name")
	}
	if len(t.Activities) == 0 {
		return model.Configurationf("group %q has no activities", t.Group)
	}
	if math.IsNaN(t.Enter) || math.IsNaN(t.Exit) {
		return model.Configurationf("group %q: thresholds must be numbers", t.Group)
	}
	if t.Enter < t.Exit {
		return model.Configurationf("group %q: enter threshold %v below exit threshold %v", t.Group, t.Enter, t.Exit)
	}
	for _, a := range t.Activities {
		if !b.initial.Has(a) && !b.restricted.Has(a) && !b.open.Has(a) {
			return model.Configurationf("group %q: activity %q unknown to all policies", t.Group, a)
		}
	}
	return nil
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
