package sim

import (
	"fmt"
	"math"

	"github.com/ppiankov/npipolicy/internal/adaptive"
)

// DiffEntry is one day and activity where two policies resolve different
// remaining fractions.
type DiffEntry struct {
	Date        string  `json:"date"`
	Activity    string  `json:"activity"`
	OldFraction float64 `json:"old_fraction"`
	NewFraction float64 `json:"new_fraction"`
}

// CompareResult holds the outcome of replaying one trajectory through two
// policies.
type CompareResult struct {
	TotalPoints   int         `json:"total_points"`
	ChangedPoints int         `json:"changed_points"`
	NewlyTighter  int         `json:"newly_tighter"`
	NewlyLooser   int         `json:"newly_looser"`
	Changes       []DiffEntry `json:"changes"`
}

// Compare simulates t under both policies and reports every (day, activity)
// whose region wide fraction differs.
func Compare(old, updated *adaptive.Policy, t *Trajectory, activities []string) (*CompareResult, error) {
	if len(activities) == 0 {
		activities = mergeActivities(triggerActivities(old), triggerActivities(updated))
	}
	a, err := Simulate(old, t, activities)
	if err != nil {
		return nil, fmt.Errorf("old policy: %w", err)
	}
	b, err := Simulate(updated, t, activities)
	if err != nil {
		return nil, fmt.Errorf("new policy: %w", err)
	}

	result := &CompareResult{}
	for i := range a.Days {
		for _, act := range activities {
			result.TotalPoints++
			of, nf := a.Days[i].Fractions[act], b.Days[i].Fractions[act]
			if math.Abs(of-nf) <= 1e-12 {
				continue
			}
			result.ChangedPoints++
			if nf < of {
				result.NewlyTighter++
			} else {
				result.NewlyLooser++
			}
			result.Changes = append(result.Changes, DiffEntry{
				Date:        a.Days[i].Date,
				Activity:    act,
				OldFraction: of,
				NewFraction: nf,
			})
		}
	}
	return result, nil
}

func mergeActivities(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, x := range append(a, b...) {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
