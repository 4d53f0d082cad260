package policy

import (
	"sort"
	"time"

	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Entry is a restriction taking effect on Date.
type Entry struct {
	Date        time.Time
	Restriction restriction.Restriction
}

// Timeline is the date ordered schedule of one activity. Dates are unique.
type Timeline struct {
	entries []Entry
}

// Len returns the number of entries.
func (t Timeline) Len() int { return len(t.entries) }

// Entries returns a copy of the entries in date order.
func (t Timeline) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// At returns the restriction of the latest entry on or before date.
// ok is false before the first entry.
func (t Timeline) At(date time.Time) (restriction.Restriction, bool) {
	// first index with entry date after date
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Date.After(date)
	})
	if i == 0 {
		return restriction.Restriction{}, false
	}
	return t.entries[i-1].Restriction, true
}

func (t Timeline) index(date time.Time) (int, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Date.Before(date)
	})
	return i, i < len(t.entries) && t.entries[i].Date.Equal(date)
}

// put merges r over the entry at date, inserting it if missing. A merge
// that yields an invalid restriction leaves the entry unchanged.
func (t *Timeline) put(date time.Time, r restriction.Restriction) error {
	i, found := t.index(date)
	if found {
		merged := t.entries[i].Restriction.Merge(r)
		if err := merged.Validate(); err != nil {
			return err
		}
		t.entries[i].Restriction = merged
		return nil
	}
	if err := r.Validate(); err != nil {
		return err
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = Entry{Date: date, Restriction: r}
	return nil
}

// replace sets the restriction of an existing entry.
func (t *Timeline) replace(i int, r restriction.Restriction) {
	t.entries[i].Restriction = r
}

// clearAfter drops entries strictly after date and returns how many were removed.
func (t *Timeline) clearAfter(date time.Time) int {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Date.After(date)
	})
	n := len(t.entries) - i
	t.entries = t.entries[:i]
	return n
}

func (t Timeline) clone() *Timeline {
	return &Timeline{entries: t.Entries()}
}

func (t Timeline) equal(o Timeline) bool {
	if len(t.entries) != len(o.entries) {
		return false
	}
	for i := range t.entries {
		if !t.entries[i].Date.Equal(o.entries[i].Date) || !t.entries[i].Restriction.Equal(o.entries[i].Restriction) {
			return false
		}
	}
	return true
}
