package policydiff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Change represents a scalar field change or a keyed addition or removal.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// EntryChange represents a dated entry addition, removal, or modification.
type EntryChange struct {
	Type     string `json:"type"` // "added", "removed", "changed"
	Section  string `json:"section,omitempty"`
	Activity string `json:"activity"`
	Date     string `json:"date"`
	Old      string `json:"old,omitempty"`
	New      string `json:"new,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// DiffResult holds the comparison of two policy documents.
type DiffResult struct {
	OldPath      string        `json:"old_path"`
	NewPath      string        `json:"new_path"`
	Changes      []Change      `json:"changes"`
	EntryChanges []EntryChange `json:"entry_changes"`
	HasChanges   bool          `json:"has_changes"`
}

// Diff compares two fixed policy documents.
func Diff(old, new policy.Document) *DiffResult {
	r := &DiffResult{}
	diffDocument(r, "", old, new)
	r.HasChanges = len(r.Changes) > 0 || len(r.EntryChanges) > 0
	return r
}

// DiffAdaptive compares two adaptive policy documents, including the three
// embedded schedules.
func DiffAdaptive(old, new adaptive.Document) *DiffResult {
	r := &DiffResult{}

	diffString(r, "start-date", old.StartDate, new.StartDate)
	diffString(r, "restriction-scope", string(old.RestrictionScope), string(new.RestrictionScope))
	if old.OpenAfterDays != new.OpenAfterDays {
		r.Changes = append(r.Changes, Change{
			Field:   "open-after-days",
			Old:     fmt.Sprint(old.OpenAfterDays),
			New:     fmt.Sprint(new.OpenAfterDays),
			Comment: floatComment(float64(old.OpenAfterDays), float64(new.OpenAfterDays), true),
		})
	}
	diffKeys(r, "districts", old.Districts, new.Districts)
	diffTriggers(r, old.Incidences, new.Incidences)

	diffDocument(r, "init-policy", old.InitPolicy, new.InitPolicy)
	diffDocument(r, "restricted-policy", old.RestrictedPolicy, new.RestrictedPolicy)
	diffDocument(r, "open-policy", old.OpenPolicy, new.OpenPolicy)

	r.HasChanges = len(r.Changes) > 0 || len(r.EntryChanges) > 0
	return r
}

func diffString(r *DiffResult, field, old, new string) {
	if old != new {
		r.Changes = append(r.Changes, Change{Field: field, Old: old, New: new})
	}
}

// floatComment labels a numeric change. higherIsStricter says which
// direction tightens the policy.
func floatComment(old, new float64, higherIsStricter bool) string {
	if (new > old) == higherIsStricter {
		return "stricter"
	}
	return "looser"
}

func diffTriggers(r *DiffResult, old, new map[string]adaptive.TriggerDocument) {
	diffKeys(r, "incidences", sortedKeys(old), sortedKeys(new))
	for _, g := range sortedKeys(new) {
		o, ok := old[g]
		if !ok {
			continue
		}
		n := new[g]
		// lower thresholds restrict earlier and open later
		if o.Enter != n.Enter {
			r.Changes = append(r.Changes, Change{
				Field:   "incidences." + g + ".enter",
				Old:     fmt.Sprint(o.Enter),
				New:     fmt.Sprint(n.Enter),
				Comment: floatComment(o.Enter, n.Enter, false),
			})
		}
		if o.Exit != n.Exit {
			r.Changes = append(r.Changes, Change{
				Field:   "incidences." + g + ".exit",
				Old:     fmt.Sprint(o.Exit),
				New:     fmt.Sprint(n.Exit),
				Comment: floatComment(o.Exit, n.Exit, false),
			})
		}
		oa, na := append([]string(nil), o.Activities...), append([]string(nil), n.Activities...)
		sort.Strings(oa)
		sort.Strings(na)
		diffString(r, "incidences."+g+".activities", strings.Join(oa, ","), strings.Join(na, ","))
	}
}

func diffDocument(r *DiffResult, section string, old, new policy.Document) {
	field := "activities"
	if section != "" {
		field = section + ".activities"
	}
	diffKeys(r, field, sortedKeys(old), sortedKeys(new))

	for _, act := range sortedKeys(new) {
		oldEntries, ok := old[act]
		if !ok {
			continue
		}
		newEntries := new[act]
		for _, date := range sortedKeys(newEntries) {
			n := newEntries[date]
			o, exists := oldEntries[date]
			switch {
			case !exists:
				r.EntryChanges = append(r.EntryChanges, EntryChange{
					Type: "added", Section: section, Activity: act, Date: date, New: n.String(),
				})
			case !o.Equal(n):
				r.EntryChanges = append(r.EntryChanges, EntryChange{
					Type: "changed", Section: section, Activity: act, Date: date,
					Old: o.String(), New: n.String(), Comment: restrictionComment(o, n),
				})
			}
		}
		for _, date := range sortedKeys(oldEntries) {
			if _, exists := newEntries[date]; !exists {
				r.EntryChanges = append(r.EntryChanges, EntryChange{
					Type: "removed", Section: section, Activity: act, Date: date, Old: oldEntries[date].String(),
				})
			}
		}
	}
}

// restrictionComment compares the remaining fraction, then the contact
// intensity. Other dimensions are not ranked.
func restrictionComment(old, new restriction.Restriction) string {
	if old.RemainingFraction() != new.RemainingFraction() {
		return floatComment(old.RemainingFraction(), new.RemainingFraction(), false)
	}
	if old.CiCorrection() != new.CiCorrection() {
		return floatComment(old.CiCorrection(), new.CiCorrection(), false)
	}
	return ""
}

func diffKeys(r *DiffResult, section string, oldKeys, newKeys []string) {
	oldSet := make(map[string]bool)
	for _, k := range oldKeys {
		oldSet[k] = true
	}
	newSet := make(map[string]bool)
	for _, k := range newKeys {
		newSet[k] = true
	}

	for _, k := range newKeys {
		if !oldSet[k] {
			r.Changes = append(r.Changes, Change{Field: section, New: k, Comment: "added"})
		}
	}
	for _, k := range oldKeys {
		if !newSet[k] {
			r.Changes = append(r.Changes, Change{Field: section, Old: k, Comment: "removed"})
		}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
