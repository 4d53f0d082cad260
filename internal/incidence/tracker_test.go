package incidence

import (
	"errors"
	"testing"

	"github.com/ppiankov/npipolicy/internal/model"
)

func TestWeekly(t *testing.T) {
	tr := NewTracker()
	start := model.MustDate("2020-03-01")
	for i := 0; i <= 10; i++ {
		if err := tr.Record("global", start.AddDate(0, 0, i), float64(100*i), 1_000_000); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := tr.Weekly("global", start.AddDate(0, 0, 6)); ok {
		t.Error("expected no value before a full window")
	}
	v, ok := tr.Weekly("global", start.AddDate(0, 0, 7))
	if !ok {
		t.Fatal("expected value after 7 days")
	}
	// 700 cases in a week in a population of one million
	if v != 70 {
		t.Errorf("expected 70, got %v", v)
	}
	if _, ok := tr.Weekly("north", start.AddDate(0, 0, 7)); ok {
		t.Error("expected no value for unknown scope")
	}
}

func TestRecordValidation(t *testing.T) {
	tr := NewTracker()
	var ve *model.ValidationError
	if err := tr.Record("global", model.MustDate("2020-03-01"), 10, 0); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for zero population, got %v", err)
	}
	if err := tr.Record("global", model.MustDate("2020-03-01"), -5, 100); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for negative cases, got %v", err)
	}
}

type reports map[string]float64

func (r reports) ReportIncidence(scope, group string, value float64) error {
	if group != "" {
		return errors.New("expected all groups")
	}
	r[scope] = value
	return nil
}

func TestReport(t *testing.T) {
	tr := NewTracker()
	start := model.MustDate("2020-03-01")
	end := start.AddDate(0, 0, 7)
	for _, rec := range []struct {
		scope string
		cases float64
	}{{"global", 0}, {"north", 0}} {
		if err := tr.Record(rec.scope, start, rec.cases, 100_000); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Record("global", end, 40, 100_000); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record("north", end, 90, 100_000); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record("south", end, 90, 100_000); err != nil {
		t.Fatal(err)
	}

	got := reports{}
	if err := tr.Report(got, end); err != nil {
		t.Fatal(err)
	}
	if got["global"] != 40 || got["north"] != 90 {
		t.Errorf("unexpected reports %v", got)
	}
	if _, ok := got["south"]; ok {
		t.Error("expected south skipped without a full window")
	}
}
