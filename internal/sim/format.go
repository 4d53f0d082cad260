package sim

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatText renders the simulation result as human-readable text.
func FormatText(r *SimResult) string {
	var b strings.Builder

	first, last := "", ""
	if n := len(r.Days); n > 0 {
		first, last = r.Days[0].Date, r.Days[n-1].Date
	}
	fmt.Fprintf(&b, "Simulating %d days (%s to %s) for %s...\n",
		len(r.Days), first, last, strings.Join(r.Activities, ", "))

	if len(r.Transitions) == 0 {
		b.WriteString("\nNo regime changes.\n")
	} else {
		b.WriteString("\n")
		for _, t := range r.Transitions {
			fmt.Fprintf(&b, "  %s  %-12s %-10s %s -> %s  (incidence %.1f)\n",
				t.Date, t.Group, t.Scope, t.From, t.To, t.Incidence)
		}
	}

	if len(r.RestrictedDays) > 0 {
		b.WriteString("\nDays restricted:\n")
		keys := make([]string, 0, len(r.RestrictedDays))
		for k := range r.RestrictedDays {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %-24s %d\n", k, r.RestrictedDays[k])
		}
	}

	fmt.Fprintf(&b, "\n%d regime changes over %d days.", len(r.Transitions), len(r.Days))
	if r.RecorderErrors > 0 {
		fmt.Fprintf(&b, " %d journal writes failed.", r.RecorderErrors)
	}
	b.WriteString("\n")
	return b.String()
}

// FormatJSON renders the simulation result as JSON.
func FormatJSON(r *SimResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sim result: %w", err)
	}
	return string(data), nil
}

// FormatCompareText renders a comparison as human-readable text.
func FormatCompareText(r *CompareResult) string {
	var b strings.Builder
	if len(r.Changes) == 0 {
		b.WriteString("No changes detected.\n")
		return b.String()
	}
	for _, d := range r.Changes {
		fmt.Fprintf(&b, "  CHANGED  %s  %-16s %.3f -> %.3f\n", d.Date, d.Activity, d.OldFraction, d.NewFraction)
	}
	fmt.Fprintf(&b, "\n%d of %d points changed. %d tighter, %d looser.\n",
		r.ChangedPoints, r.TotalPoints, r.NewlyTighter, r.NewlyLooser)
	return b.String()
}

// FormatCompareJSON renders a comparison as JSON.
func FormatCompareJSON(r *CompareResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal compare result: %w", err)
	}
	return string(data), nil
}
