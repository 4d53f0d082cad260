package adaptive

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
)

// TriggerDocument is the persisted form of one incidence trigger.
type TriggerDocument struct {
	Activities []string `yaml:"activities" json:"activities"`
	Enter      float64  `yaml:"enter" json:"enter"`
	Exit       float64  `yaml:"exit" json:"exit"`
}

// Document is the persisted form of an adaptive Policy. The three embedded
// schedules use the fixed policy document form.
type Document struct {
	StartDate        string                     `yaml:"start-date,omitempty" json:"start-date,omitempty"`
	RestrictionScope Scope                      `yaml:"restriction-scope,omitempty" json:"restriction-scope,omitempty"`
	Districts        []string                   `yaml:"districts,omitempty" json:"districts,omitempty"`
	OpenAfterDays    int                        `yaml:"open-after-days,omitempty" json:"open-after-days,omitempty"`
	Incidences       map[string]TriggerDocument `yaml:"incidences" json:"incidences"`
	InitPolicy       policy.Document            `yaml:"init-policy,omitempty" json:"init-policy,omitempty"`
	RestrictedPolicy policy.Document            `yaml:"restricted-policy" json:"restricted-policy"`
	OpenPolicy       policy.Document            `yaml:"open-policy" json:"open-policy"`
}

// Document returns the persisted form of p.
func (p *Policy) Document() Document {
	doc := Document{
		RestrictionScope: p.scope,
		Districts:        p.Districts(),
		Incidences:       make(map[string]TriggerDocument, len(p.triggers)),
		RestrictedPolicy: p.restricted.Document(),
		OpenPolicy:       p.open.Document(),
	}
	if !p.start.Equal(model.Beginning) {
		doc.StartDate = model.FormatDate(p.start)
	}
	if p.openAfterDays > 1 {
		doc.OpenAfterDays = p.openAfterDays
	}
	if p.initial != nil {
		doc.InitPolicy = p.initial.Document()
	}
	for _, t := range p.triggers {
		doc.Incidences[t.Group] = TriggerDocument{
			Activities: append([]string(nil), t.Activities...),
			Enter:      t.Enter,
			Exit:       t.Exit,
		}
	}
	return doc
}

// FromDocument builds an adaptive Policy from its persisted form.
func FromDocument(doc Document, opts ...Option) (*Policy, error) {
	b := Config(opts...)
	if doc.StartDate != "" {
		b.StartDate(doc.StartDate)
	}
	if doc.RestrictionScope != "" {
		b.RestrictionScope(doc.RestrictionScope)
	}
	if doc.OpenAfterDays != 0 {
		b.OpenAfterDays(doc.OpenAfterDays)
	}
	b.Districts(doc.Districts...)

	if doc.InitPolicy != nil {
		p, err := policy.FromDocument(doc.InitPolicy)
		if err != nil {
			return nil, fmt.Errorf("init-policy: %w", err)
		}
		b.InitialPolicy(p)
	}
	if doc.RestrictedPolicy != nil {
		p, err := policy.FromDocument(doc.RestrictedPolicy)
		if err != nil {
			return nil, fmt.Errorf("restricted-policy: %w", err)
		}
		b.RestrictedPolicy(p)
	}
	if doc.OpenPolicy != nil {
		p, err := policy.FromDocument(doc.OpenPolicy)
		if err != nil {
			return nil, fmt.Errorf("open-policy: %w", err)
		}
		b.OpenPolicy(p)
	}

	groups := make([]string, 0, len(doc.Incidences))
	for g := range doc.Incidences {
		groups = append(groups, g)
	}
	for _, g := range dedupe(groups) {
		t := doc.Incidences[g]
		b.IncidenceTrigger(g, t.Enter, t.Exit, t.Activities...)
	}
	return b.Build()
}

// Decode parses a YAML or JSON adaptive policy document.
func Decode(data []byte, opts ...Option) (*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse adaptive policy: %w", err)
	}
	return FromDocument(doc, opts...)
}

// Load reads an adaptive policy document from path.
func Load(path string, opts ...Option) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adaptive policy: %w", err)
	}
	p, err := Decode(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
