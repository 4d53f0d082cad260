package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/npipolicy/internal/model"
	"github.com/ppiankov/npipolicy/internal/restriction"
)

// Document is the persisted form of a Policy: activity -> ISO date ->
// restriction attributes. Activities without entries map to an empty map.
type Document map[string]map[string]restriction.Restriction

// Document returns the persisted form of p.
func (p *Policy) Document() Document {
	doc := make(Document, len(p.timelines))
	for name, tl := range p.timelines {
		entries := make(map[string]restriction.Restriction, tl.Len())
		for _, e := range tl.entries {
			entries[model.FormatDate(e.Date)] = e.Restriction
		}
		doc[name] = entries
	}
	return doc
}

// FromDocument freezes doc into a Policy.
func FromDocument(doc Document) (*Policy, error) {
	p := &Policy{
		timelines:  make(map[string]Timeline, len(doc)),
		activities: sortedNames(doc),
	}
	for _, name := range p.activities {
		if name == "" {
			return nil, model.Configurationf("document: empty activity name")
		}
		tl := &Timeline{}
		for _, key := range sortedNames(doc[name]) {
			date, err := model.ParseDate(key)
			if err != nil {
				return nil, model.Configurationf("document: activity %s: %v", name, err)
			}
			if err := tl.put(date, doc[name][key]); err != nil {
				return nil, fmt.Errorf("document: activity %s on %s: %w", name, key, err)
			}
		}
		p.timelines[name] = *tl
	}
	return p, nil
}

func (p *Policy) MarshalYAML() (any, error) {
	return p.Document(), nil
}

func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var doc Document
	if err := value.Decode(&doc); err != nil {
		return err
	}
	parsed, err := FromDocument(doc)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

func (p *Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Document())
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	parsed, err := FromDocument(doc)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// Decode parses a YAML or JSON policy document.
func Decode(data []byte) (*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	return FromDocument(doc)
}

// Encode renders p as "yaml" or "json".
func Encode(p *Policy, format string) ([]byte, error) {
	switch format {
	case "json":
		return json.MarshalIndent(p.Document(), "", "  ")
	case "yaml", "":
		return yaml.Marshal(p.Document())
	default:
		return nil, fmt.Errorf("unknown policy format %q", format)
	}
}

// Load reads a policy document from path.
func Load(path string) (*Policy, error) {
	p, _, err := LoadWithHash(path)
	return p, err
}

// LoadWithHash reads a policy document and returns the SHA-256 of the raw
// bytes on disk.
func LoadWithHash(path string) (*Policy, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read policy: %w", err)
	}
	h := sha256.Sum256(data)
	p, err := Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return p, "sha256:" + hex.EncodeToString(h[:]), nil
}

// Save writes p to path; a .json extension selects JSON, anything else YAML.
func Save(path string, p *Policy) error {
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	data, err := Encode(p, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create policy dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}
	return nil
}
