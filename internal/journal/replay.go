package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Filter selects journal entries. Empty fields match everything.
type Filter struct {
	RunID string
	Group string
	Scope string
}

// Summary counts transitions per target regime.
type Summary struct {
	Total      int    `json:"total"`
	Restricted int    `json:"restricted"`
	Opened     int    `json:"opened"`
	FirstDate  string `json:"first_date"`
	LastDate   string `json:"last_date"`
}

// ReplayResult holds filtered entries and their summary.
type ReplayResult struct {
	Filter  Filter  `json:"filter"`
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Replay reads the journal and returns entries matching f. Malformed lines
// are skipped.
func Replay(path string, f Filter) (*ReplayResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	result := &ReplayResult{Filter: f}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !f.matches(e) {
			continue
		}
		result.Entries = append(result.Entries, e)
		result.Summary.add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return result, nil
}

func (f Filter) matches(e Entry) bool {
	return (f.RunID == "" || f.RunID == e.RunID) &&
		(f.Group == "" || f.Group == e.Group) &&
		(f.Scope == "" || f.Scope == e.Scope)
}

func (s *Summary) add(e Entry) {
	s.Total++
	switch e.To {
	case "restricted":
		s.Restricted++
	case "open":
		s.Opened++
	}
	if s.FirstDate == "" || e.Date < s.FirstDate {
		s.FirstDate = e.Date
	}
	if e.Date > s.LastDate {
		s.LastDate = e.Date
	}
}

const separator = "──────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a text timeline.
func FormatTimeline(r *ReplayResult) string {
	if len(r.Entries) == 0 {
		return "No transitions found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Transitions %s – %s\n", r.Summary.FirstDate, r.Summary.LastDate)
	b.WriteString(separator + "\n")
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%-10s  %-12s  %-10s  %-10s -> %-10s  %8.1f\n",
			e.Date, e.Group, e.Scope, e.From, e.To, e.Incidence)
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Summary: %d transitions, %d restricted, %d opened\n",
		r.Summary.Total, r.Summary.Restricted, r.Summary.Opened)
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(r *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}
