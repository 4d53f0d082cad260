package policy

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

func samplePolicy(t *testing.T) *Policy {
	t.Helper()
	return mustBuild(t, Config().
		RestrictFraction("2020-03-10", 0.6, "work", "leisure").
		Restrict("2020-03-10", restriction.Must(restriction.OfCiCorrection(0.7)), "leisure").
		Restrict("2020-04-20", restriction.Must(restriction.OfMask(map[restriction.Mask]float64{
			restriction.MaskCloth: 0.5, restriction.MaskSurgical: 0.1,
		})), "shop", "pt").
		Restrict("2020-05-01", restriction.Must(restriction.OfLocationBasedRf(map[string]float64{"north": 0.3})), "work").
		Restrict("2021-04-06", restriction.Must(restriction.OfClosingHours(21, 5)), "leisure").
		Open("2021-06-01", "leisure").
		Declare("home"))
}

func assertSameResolution(t *testing.T, want, got *Policy) {
	t.Helper()
	start := model.MustDate("2020-01-01")
	for d := 0; d < 600; d += 3 {
		date := start.AddDate(0, 0, d)
		for _, a := range want.Activities() {
			w, err := want.Resolve(date, a)
			if err != nil {
				t.Fatal(err)
			}
			g, err := got.Resolve(date, a)
			if err != nil {
				t.Fatalf("%s %s: %v", model.FormatDate(date), a, err)
			}
			if !w.Equal(g) {
				t.Fatalf("%s %s: expected %s, got %s", model.FormatDate(date), a, w, g)
			}
		}
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	p := samplePolicy(t)
	data, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Policy
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	if !p.Equal(&back) {
		t.Errorf("expected equal policy after round trip:\n%s", data)
	}
	assertSameResolution(t, p, &back)
}

func TestJSONRoundTrip(t *testing.T) {
	p := samplePolicy(t)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Policy
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	assertSameResolution(t, p, &back)
}

func TestDeclaredActivitySerializesEmpty(t *testing.T) {
	doc := samplePolicy(t).Document()
	home, ok := doc["home"]
	if !ok {
		t.Fatal("expected home in document")
	}
	if len(home) != 0 {
		t.Errorf("expected no entries for home, got %v", home)
	}

	data, _ := yaml.Marshal(doc)
	if !strings.Contains(string(data), "home: {}") {
		t.Errorf("expected empty mapping for home:\n%s", data)
	}
}

func TestDocumentShape(t *testing.T) {
	data, err := Encode(samplePolicy(t), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]map[string]map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		t.Fatalf("expected activity -> date -> attributes:\n%s", err)
	}
	if got := generic["work"]["2020-03-10"]["fraction"]; got != 0.6 {
		t.Errorf("expected fraction 0.6, got %v", got)
	}
	hours, ok := generic["leisure"]["2021-04-06"]["closingHours"].([]any)
	if !ok || len(hours) != 2 || hours[0] != 21 || hours[1] != 5 {
		t.Errorf("expected closingHours [21, 5], got %v", generic["leisure"]["2021-04-06"]["closingHours"])
	}
}

func TestCurfewEndToEnd(t *testing.T) {
	data := `
leisure:
  "2021-04-06":
    closingHours: [21, 5]
`
	p, err := Decode([]byte(data))
	if err != nil {
		t.Fatal(err)
	}

	before := mustResolve(t, p, "2021-04-05", "leisure")
	if _, ok := before.ClosingHours(); ok {
		t.Error("expected no closing hours before 2021-04-06")
	}

	r := mustResolve(t, p, "2021-04-10", "leisure")
	ch, ok := r.ClosingHours()
	if !ok || ch.Start != 21 || ch.End != 5 {
		t.Fatalf("expected closing hours 21-5, got %v %v", ch, ok)
	}

	// a leisure activity from 20:00 to 23:00 loses two hours
	if got := r.OverlapWithClosingHours(20*3600, 23*3600); got != 2*3600 {
		t.Errorf("expected 2h overlap, got %ds", got)
	}
}

func TestResolveUnknownActivity(t *testing.T) {
	_, err := samplePolicy(t).Resolve(model.MustDate("2020-05-01"), "sauna")
	var ce *model.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestResolveAll(t *testing.T) {
	p := samplePolicy(t)
	all := p.ResolveAll(model.MustDate("2020-04-20"))
	if len(all) != len(p.Activities()) {
		t.Fatalf("expected %d activities, got %d", len(p.Activities()), len(all))
	}
	if all["work"].RemainingFraction() != 0.6 {
		t.Errorf("expected work 0.6, got %v", all["work"].RemainingFraction())
	}
	if all["shop"].MaskCompliance()[restriction.MaskCloth] != 0.5 {
		t.Errorf("expected shop masks, got %v", all["shop"].MaskCompliance())
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad date", "work:\n  \"2020-3-1\":\n    fraction: 0.5\n"},
		{"bad attribute", "work:\n  \"2020-03-01\":\n    fraction: 4\n"},
		{"not a mapping", "work: [1, 2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	p := samplePolicy(t)
	dir := t.TempDir()

	for _, name := range []string{"policy.yaml", "policy.json"} {
		path := filepath.Join(dir, "nested", name)
		if err := Save(path, p); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		back, hash, err := LoadWithHash(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if !strings.HasPrefix(hash, "sha256:") {
			t.Errorf("expected sha256 hash, got %s", hash)
		}
		if !p.Equal(back) {
			t.Errorf("%s: expected equal policy after save/load", name)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, "nested", "policy.json"))
	if !json.Valid(data) {
		t.Errorf("expected JSON output for .json path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/policy.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseDocumentReportsAtBuild(t *testing.T) {
	doc := Document{"work": {"someday": restriction.Restriction{}}}
	_, err := ParseDocument(doc).RestrictFraction("2020-03-01", 0.5, "work").Build()
	var ce *model.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestDecodeRejectsMaskSumAboveOne(t *testing.T) {
	_, err := Decode([]byte(`
shop:
  "2020-04-27":
    masks: {CLOTH: 0.8, N95: 0.8}
`))
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Field != "masks" {
		t.Errorf("expected masks validation error, got %v", err)
	}
}
