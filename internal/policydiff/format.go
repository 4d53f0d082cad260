package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Policy diff: %s → %s\n\nNo changes detected.\n", r.OldPath, r.NewPath)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy diff: %s → %s\n", r.OldPath, r.NewPath)

	var scalars, keyed []Change
	for _, c := range r.Changes {
		if c.Comment == "added" || c.Comment == "removed" {
			keyed = append(keyed, c)
		} else {
			scalars = append(scalars, c)
		}
	}

	if len(scalars) > 0 {
		b.WriteString("\n")
		for _, c := range scalars {
			fmt.Fprintf(&b, "  %-32s %s → %s", c.Field+":", c.Old, c.New)
			if c.Comment != "" {
				fmt.Fprintf(&b, "  (%s)", c.Comment)
			}
			b.WriteString("\n")
		}
	}

	if len(keyed) > 0 {
		b.WriteString("\n")
		for _, c := range keyed {
			switch c.Comment {
			case "added":
				fmt.Fprintf(&b, "  %s: + %s\n", c.Field, c.New)
			case "removed":
				fmt.Fprintf(&b, "  %s: - %s\n", c.Field, c.Old)
			}
		}
	}

	if len(r.EntryChanges) > 0 {
		b.WriteString("\n  Entries:\n")
		for _, e := range r.EntryChanges {
			label := e.Activity + " " + e.Date
			if e.Section != "" {
				label = e.Section + "/" + label
			}
			switch e.Type {
			case "added":
				fmt.Fprintf(&b, "    + %s %s\n", label, e.New)
			case "removed":
				fmt.Fprintf(&b, "    - %s %s\n", label, e.Old)
			case "changed":
				fmt.Fprintf(&b, "    ~ %s %s → %s", label, e.Old, e.New)
				if e.Comment != "" {
					fmt.Fprintf(&b, "  (%s)", e.Comment)
				}
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}
