package scenario

import "github.com/ppiankov/npipolicy/internal/restriction"

// EditSpec is one schedule edit in scenario YAML. Which fields apply
// depends on Op.
type EditSpec struct {
	Op         string                   `yaml:"op"`
	Date       string                   `yaml:"date,omitempty"`
	From       string                   `yaml:"from,omitempty"`
	To         string                   `yaml:"to,omitempty"`
	Activities []string                 `yaml:"activities,omitempty"`
	Set        *restriction.Restriction `yaml:"restriction,omitempty"`
	Factor     *float64                 `yaml:"factor,omitempty"`
	District   string                   `yaml:"district,omitempty"`
	Value      *float64                 `yaml:"value,omitempty"`
	Start      *restriction.Restriction `yaml:"start,omitempty"`
	End        *restriction.Restriction `yaml:"end,omitempty"`
}

// Expect lists the attributes a case checks. Unset fields are not checked.
type Expect struct {
	Fraction     *float64                 `yaml:"fraction,omitempty"`
	CiCorrection *float64                 `yaml:"ci_correction,omitempty"`
	Masks        map[string]float64       `yaml:"masks,omitempty"`
	ClosingHours *restriction.ClosingHours `yaml:"closing_hours,omitempty"`
	MaxGroupSize *int                     `yaml:"max_group_size,omitempty"`
	Open         *bool                    `yaml:"open,omitempty"`
}

// Case resolves one activity on one date and compares the result.
type Case struct {
	Date     string `yaml:"date"`
	Activity string `yaml:"activity"`
	District string `yaml:"district,omitempty"`
	Expect   Expect `yaml:"expect"`
}

// Scenario is a named schedule plus the cases it must satisfy.
type Scenario struct {
	Name   string     `yaml:"name"`
	Preset string     `yaml:"preset,omitempty"`
	Edits  []EditSpec `yaml:"edits,omitempty"`
	Cases  []Case     `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int      `json:"index"`
	Passed   bool     `json:"passed"`
	Date     string   `json:"date"`
	Activity string   `json:"activity"`
	District string   `json:"district,omitempty"`
	Actual   string   `json:"actual"`
	Failures []string `json:"failures,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Error  string       `json:"error,omitempty"`
	Cases  []CaseResult `json:"cases"`
}
