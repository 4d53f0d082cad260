package restriction

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
)

// Keys of the generic map form.
const (
	KeyFraction         = "fraction"
	KeyCiCorrection     = "ciCorrection"
	KeyMasks            = "masks"
	KeyClosingHours     = "closingHours"
	KeyLocationBasedRf  = "locationBasedRf"
	KeySusceptibleRf    = "susceptibleRf"
	KeyVaccinatedRf     = "vaccinatedRf"
	KeyMaxGroupSize     = "maxGroupSize"
	KeyReducedGroupSize = "reducedGroupSize"
	KeyClosed           = "closed"
)

// Map returns the generic form of r. Only set dimensions are present.
func (r Restriction) Map() map[string]any {
	a := r.a
	m := make(map[string]any)
	if a.Fraction != nil {
		m[KeyFraction] = *a.Fraction
	}
	if a.CiCorrection != nil {
		m[KeyCiCorrection] = *a.CiCorrection
	}
	if a.MaxGroupSize != nil {
		m[KeyMaxGroupSize] = *a.MaxGroupSize
	}
	if a.ReducedGroupSize != nil {
		m[KeyReducedGroupSize] = *a.ReducedGroupSize
	}
	if a.ClosingHours != nil {
		m[KeyClosingHours] = []any{a.ClosingHours.Start, a.ClosingHours.End}
	}
	if a.SusceptibleRf != nil {
		m[KeySusceptibleRf] = *a.SusceptibleRf
	}
	if a.VaccinatedRf != nil {
		m[KeyVaccinatedRf] = *a.VaccinatedRf
	}
	if a.Masks != nil {
		masks := make(map[string]any, len(a.Masks))
		for k, v := range a.Masks {
			masks[string(k)] = v
		}
		m[KeyMasks] = masks
	}
	if a.LocationBasedRf != nil {
		rf := make(map[string]any, len(a.LocationBasedRf))
		for k, v := range a.LocationBasedRf {
			rf[k] = v
		}
		m[KeyLocationBasedRf] = rf
	}
	if a.Closed != nil {
		closed := make([]any, len(a.Closed))
		for i, id := range a.Closed {
			closed[i] = id
		}
		m[KeyClosed] = closed
	}
	return m
}

// FromMap parses the generic form. Nil values are treated as unset, unknown
// keys are rejected.
func FromMap(m map[string]any) (Restriction, error) {
	var a Attributes
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		if v == nil {
			continue
		}
		var err error
		switch k {
		case KeyFraction:
			a.Fraction, err = floatPtr(k, v)
		case KeyCiCorrection:
			a.CiCorrection, err = floatPtr(k, v)
		case KeySusceptibleRf:
			a.SusceptibleRf, err = floatPtr(k, v)
		case KeyVaccinatedRf:
			a.VaccinatedRf, err = floatPtr(k, v)
		case KeyMaxGroupSize:
			a.MaxGroupSize, err = intPtr(k, v)
		case KeyReducedGroupSize:
			a.ReducedGroupSize, err = intPtr(k, v)
		case KeyClosingHours:
			a.ClosingHours, err = parseClosingHours(v)
		case KeyMasks:
			var raw map[string]float64
			raw, err = floatMap(k, v)
			if err == nil {
				a.Masks = make(map[Mask]float64, len(raw))
				for name, rate := range raw {
					a.Masks[Mask(name)] = rate
				}
			}
		case KeyLocationBasedRf:
			a.LocationBasedRf, err = floatMap(k, v)
		case KeyClosed:
			a.Closed, err = stringList(k, v)
		default:
			err = &model.ValidationError{Field: k, Value: v, Reason: "unknown restriction attribute"}
		}
		if err != nil {
			return Restriction{}, err
		}
	}
	return FromAttributes(a)
}

// MarshalYAML encodes the generic map form.
func (r Restriction) MarshalYAML() (any, error) {
	return r.Map(), nil
}

// UnmarshalYAML decodes and validates the generic map form.
func (r *Restriction) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]any
	if err := value.Decode(&m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Restriction) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func (r *Restriction) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func floatPtr(field string, v any) (*float64, error) {
	f, err := toFloat(field, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func intPtr(field string, v any) (*int, error) {
	n, err := toInt(field, v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// toFloat accepts any numeric type produced by YAML, JSON or Go callers.
func toFloat(field string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, &model.ValidationError{Field: field, Value: v, Reason: "expected a number"}
		}
		return f, nil
	}
	return 0, &model.ValidationError{Field: field, Value: v, Reason: fmt.Sprintf("expected a number, got %T", v)}
}

func toInt(field string, v any) (int, error) {
	f, err := toFloat(field, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, &model.ValidationError{Field: field, Value: v, Reason: "expected an integer"}
	}
	return int(f), nil
}

func floatMap(field string, v any) (map[string]float64, error) {
	out := make(map[string]float64)
	switch m := v.(type) {
	case map[string]any:
		for k, raw := range m {
			f, err := toFloat(field+"."+k, raw)
			if err != nil {
				return nil, err
			}
			out[k] = f
		}
	case map[string]float64:
		for k, f := range m {
			out[k] = f
		}
	case map[Mask]float64:
		for k, f := range m {
			out[string(k)] = f
		}
	default:
		return nil, &model.ValidationError{Field: field, Value: v, Reason: "expected a mapping"}
	}
	return out, nil
}

func stringList(field string, v any) ([]string, error) {
	switch l := v.(type) {
	case []string:
		return normalizeIDs(l), nil
	case []any:
		ids := make([]string, 0, len(l))
		for _, raw := range l {
			s, ok := raw.(string)
			if !ok {
				return nil, &model.ValidationError{Field: field, Value: raw, Reason: "expected a facility id string"}
			}
			ids = append(ids, s)
		}
		return normalizeIDs(ids), nil
	}
	return nil, &model.ValidationError{Field: field, Value: v, Reason: "expected a list of facility ids"}
}

func parseClosingHours(v any) (*ClosingHours, error) {
	switch ch := v.(type) {
	case ClosingHours:
		return &ch, nil
	case *ClosingHours:
		c := *ch
		return &c, nil
	case []int:
		if len(ch) == 2 {
			return &ClosingHours{Start: ch[0], End: ch[1]}, nil
		}
	case []any:
		if len(ch) == 2 {
			start, err := toInt(KeyClosingHours+".start", ch[0])
			if err != nil {
				return nil, err
			}
			end, err := toInt(KeyClosingHours+".end", ch[1])
			if err != nil {
				return nil, err
			}
			return &ClosingHours{Start: start, End: end}, nil
		}
	case map[string]any:
		start, err := toInt(KeyClosingHours+".start", ch["start"])
		if err != nil {
			return nil, err
		}
		end, err := toInt(KeyClosingHours+".end", ch["end"])
		if err != nil {
			return nil, err
		}
		return &ClosingHours{Start: start, End: end}, nil
	}
	return nil, &model.ValidationError{Field: KeyClosingHours, Value: v, Reason: "expected [start, end]"}
}
