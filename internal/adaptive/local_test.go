package adaptive

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

var districts = []string{"north", "south", "east"}

func TestScopeEquivalence(t *testing.T) {
	global := build(t, builder(t).Districts(districts...)).NewSession()
	local := build(t, builder(t).RestrictionScope(ScopeLocal).Districts(districts...)).NewSession()

	trajectory := []float64{20, 60, 110, 140, 90, 70, 45, 30, 80, 120, 55, 10}
	d := model.MustDate("2020-03-01")
	for i, v := range trajectory {
		date := d.AddDate(0, 0, i)
		for _, s := range []*Session{global, local} {
			if err := s.ReportIncidence(Global, "", v); err != nil {
				t.Fatal(err)
			}
			for _, dist := range districts {
				if err := s.ReportIncidence(dist, "", v); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := s.Step(date); err != nil {
				t.Fatal(err)
			}
		}
		for _, dist := range districts {
			for _, a := range []string{"leisure", "work"} {
				g, err := global.ResolveDistrict(date, a, dist)
				if err != nil {
					t.Fatal(err)
				}
				l, err := local.ResolveDistrict(date, a, dist)
				if err != nil {
					t.Fatal(err)
				}
				if !g.Equal(l) {
					t.Fatalf("day %d %s %s: global %s, local %s", i, dist, a, g, l)
				}
			}
		}
	}
}

func TestLocalDistrictOverride(t *testing.T) {
	s := build(t, builder(t).RestrictionScope(ScopeLocal).Districts(districts...)).NewSession()
	d := model.MustDate("2020-03-01")

	for _, inc := range []struct {
		scope string
		v     float64
	}{{Global, 120}, {"north", 150}, {"south", 120}, {"east", 120}} {
		if err := s.ReportIncidence(inc.scope, "leisure", inc.v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Step(d); err != nil {
		t.Fatal(err)
	}
	// everything restricted; now only north stays high
	next := d.AddDate(0, 0, 1)
	for _, inc := range []struct {
		scope string
		v     float64
	}{{Global, 30}, {"north", 150}, {"south", 20}, {"east", 20}} {
		if err := s.ReportIncidence(inc.scope, "leisure", inc.v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Step(next); err != nil {
		t.Fatal(err)
	}

	if got := regime(t, s, "leisure", "north"); got != RegimeRestricted {
		t.Fatalf("expected north restricted, got %s", got)
	}
	if got := regime(t, s, "leisure", Global); got != RegimeOpen {
		t.Fatalf("expected global open, got %s", got)
	}

	north, err := s.ResolveDistrict(next, "leisure", "north")
	if err != nil {
		t.Fatal(err)
	}
	if north.RemainingFraction() != 0.9 {
		t.Errorf("expected global open fraction 0.9, got %v", north.RemainingFraction())
	}
	// the restricted policy has no north entry, so the global value stands
	if north.FractionFor("north") != 0.9 || len(north.LocationBasedRf()) != 0 {
		t.Errorf("expected north to keep global 0.9, got %s", north)
	}

	south, err := s.ResolveDistrict(next, "leisure", "south")
	if err != nil {
		t.Fatal(err)
	}
	if len(south.LocationBasedRf()) != 0 {
		t.Errorf("expected no override for south, got %v", south.LocationBasedRf())
	}

	// undeclared districts follow the global regime
	west, err := s.ResolveDistrict(next, "leisure", "west")
	if err != nil {
		t.Fatal(err)
	}
	if west.FractionFor("west") != 0.9 {
		t.Errorf("expected west to follow global, got %v", west.FractionFor("west"))
	}
}

func TestLocalFallsBackToGlobalIncidence(t *testing.T) {
	s := build(t, builder(t).RestrictionScope(ScopeLocal).Districts(districts...)).NewSession()
	d := model.MustDate("2020-03-01")
	day(t, s, d, 150)

	for _, dist := range districts {
		if got := regime(t, s, "leisure", dist); got != RegimeRestricted {
			t.Errorf("%s: expected restricted from global figure, got %s", dist, got)
		}
	}
}

func TestLocalUsesDistrictEntryOfRestrictedPolicy(t *testing.T) {
	restricted, err := policy.Config().
		RestrictFraction("2020-01-01", 0.4, "leisure").
		Restrict("2020-01-01", restriction.Must(restriction.OfLocationBasedRf(map[string]float64{"north": 0.1})), "leisure").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	b := Config().
		IncidenceTrigger("leisure", 100, 50, "leisure").
		RestrictedPolicy(restricted).
		OpenPolicy(fixed(t, 0.9, 1)).
		RestrictionScope(ScopeLocal).
		Districts("north", "south")
	s := build(t, b).NewSession()
	d := model.MustDate("2020-03-01")

	if err := s.ReportIncidence(Global, "", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.ReportIncidence("north", "", 500); err != nil {
		t.Fatal(err)
	}
	if err := s.ReportIncidence("south", "", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(d); err != nil {
		t.Fatal(err)
	}

	r, err := s.ResolveDistrict(d, "leisure", "north")
	if err != nil {
		t.Fatal(err)
	}
	if r.FractionFor("north") != 0.1 {
		t.Errorf("expected district entry 0.1, got %v", r.FractionFor("north"))
	}
}

func TestLocalWithoutDistrictEntryKeepsGlobal(t *testing.T) {
	s := build(t, builder(t).RestrictionScope(ScopeLocal).Districts("north", "south")).NewSession()
	d := model.MustDate("2020-03-01")

	if err := s.ReportIncidence(Global, "", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.ReportIncidence("north", "", 500); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Step(d); err != nil {
		t.Fatal(err)
	}
	if got := regime(t, s, "leisure", "north"); got != RegimeRestricted {
		t.Fatalf("expected north restricted, got %s", got)
	}
	if got := regime(t, s, "leisure", Global); got != RegimeInitial {
		t.Fatalf("expected global initial, got %s", got)
	}

	r, err := s.ResolveDistrict(d, "leisure", "north")
	if err != nil {
		t.Fatal(err)
	}
	if r.FractionFor("north") != 0.5 {
		t.Errorf("expected global initial fraction 0.5, got %v", r.FractionFor("north"))
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	p := build(t, builder(t).
		StartDate("2020-03-05").
		RestrictionScope(ScopeLocal).
		Districts(districts...).
		OpenAfterDays(2).
		IncidenceTrigger("work", 200, 100, "work"))

	data, err := yaml.Marshal(p.Document())
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v\n%s", err, data)
	}

	if !back.StartDate().Equal(p.StartDate()) || back.Scope() != p.Scope() {
		t.Errorf("expected start/scope preserved, got %v %s", back.StartDate(), back.Scope())
	}
	if len(back.Triggers()) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(back.Triggers()))
	}

	s1, s2 := p.NewSession(), back.NewSession()
	d := model.MustDate("2020-03-01")
	for i, v := range []float64{300, 250, 120, 80, 40, 30, 20, 220} {
		date := d.AddDate(0, 0, i)
		for _, s := range []*Session{s1, s2} {
			if err := s.ReportIncidence(Global, "", v); err != nil {
				t.Fatal(err)
			}
			if err := s.ReportIncidence("east", "", v/2); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Step(date); err != nil {
				t.Fatal(err)
			}
		}
		for _, a := range []string{"leisure", "work"} {
			for _, dist := range districts {
				r1, err1 := s1.ResolveDistrict(date, a, dist)
				r2, err2 := s2.ResolveDistrict(date, a, dist)
				if err1 != nil || err2 != nil {
					t.Fatalf("resolve: %v %v", err1, err2)
				}
				if !r1.Equal(r2) {
					t.Fatalf("day %d %s %s: expected %s, got %s", i, a, dist, r1, r2)
				}
			}
		}
	}
}

func TestDocumentDefaultsOmitted(t *testing.T) {
	doc := build(t, builder(t)).Document()
	if doc.StartDate != "" {
		t.Errorf("expected no start date, got %q", doc.StartDate)
	}
	if doc.OpenAfterDays != 0 {
		t.Errorf("expected default open after days omitted, got %d", doc.OpenAfterDays)
	}
	if tr, ok := doc.Incidences["leisure"]; !ok || tr.Enter != 100 || tr.Exit != 50 {
		t.Errorf("expected leisure trigger 100/50, got %+v", doc.Incidences)
	}
}
