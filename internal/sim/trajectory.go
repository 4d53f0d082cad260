package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
)

// Day is one day of observed data. Incidence holds 7-day incidence per
// 100,000 by scope key; Cases holds cumulative case counts by scope key and
// requires a population for that key.
type Day struct {
	Date      string             `yaml:"date"`
	Incidence map[string]float64 `yaml:"incidence,omitempty"`
	Cases     map[string]float64 `yaml:"cases,omitempty"`
}

// Trajectory is a day by day incidence course.
type Trajectory struct {
	Population map[string]float64 `yaml:"population,omitempty"`
	Days       []Day              `yaml:"days"`
}

// Validate checks dates are valid and strictly increasing, and that every
// scope reporting cases has a population.
func (t *Trajectory) Validate() error {
	if len(t.Days) == 0 {
		return errors.New("trajectory has no days")
	}
	var prev string
	for i, d := range t.Days {
		if _, err := model.ParseDate(d.Date); err != nil {
			return fmt.Errorf("days[%d]: %w", i, err)
		}
		if i > 0 && d.Date <= prev {
			return fmt.Errorf("days[%d]: date %s not after %s", i, d.Date, prev)
		}
		prev = d.Date
		for scope := range d.Cases {
			if t.Population[scope] <= 0 {
				return fmt.Errorf("days[%d]: cases for %q without population", i, scope)
			}
		}
	}
	return nil
}

// LoadTrajectory reads a trajectory from YAML, or from CSV when the file
// has a .csv extension.
func LoadTrajectory(path string) (*Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trajectory: %w", err)
	}
	defer f.Close()

	var t *Trajectory
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		t, err = ReadCSV(f)
	} else {
		t = &Trajectory{}
		err = yaml.NewDecoder(f).Decode(t)
	}
	if err != nil {
		return nil, fmt.Errorf("parse trajectory %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses rows of "date,scope,incidence" with a header line. Rows
// may come in any order.
func ReadCSV(r io.Reader) (*Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.ToLower(header[0]) != "date" {
		return nil, fmt.Errorf("expected header date,scope,incidence, got %v", header)
	}

	byDate := make(map[string]map[string]float64)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %s/%s: %w", rec[0], rec[1], err)
		}
		if byDate[rec[0]] == nil {
			byDate[rec[0]] = make(map[string]float64)
		}
		byDate[rec[0]][rec[1]] = v
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	t := &Trajectory{}
	for _, d := range dates {
		t.Days = append(t.Days, Day{Date: d, Incidence: byDate[d]})
	}
	return t, nil
}
