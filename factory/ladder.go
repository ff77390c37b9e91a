/*
Package factory provides JSON/YAML to Go ladder conversion.

PURPOSE:
  Converts wage ladder definitions into ladder.Ladder values. Ladders are
  maintained by payroll, not developers, so they live in files and admin
  requests rather than code.

JSON SCHEMA:
  {
    "id": "standard",
    "name": "Standard wage ladder",
    "levels": [
      {"level": 1, "min_hours": 0,    "max_hours": 500,  "hourly_rate": "200.00"},
      {"level": 2, "min_hours": 500,  "max_hours": 1000, "hourly_rate": "210.00"},
      {"level": 3, "min_hours": 1000,                    "hourly_rate": "225.00"}
    ]
  }

YAML FILES:
  A ladder file holds several ladders under a top-level "ladders" key:

    ladders:
      - id: standard
        name: Standard wage ladder
        levels:
          - {level: 1, min_hours: 0, max_hours: 500, hourly_rate: 200.00}
          - {level: 2, min_hours: 500, hourly_rate: 210.00}

KEY FEATURES:
  - Decimal fields accept numbers or strings
  - Unknown fields are rejected
  - Every parsed ladder passes ladder.Validate

USAGE:
  f := factory.NewLadderFactory()
  l, err := f.ParseJSON([]byte(factory.StandardLadderJSON("standard", "Standard")))
  ladders, err := f.LoadFile("ladders.yaml")

SEE ALSO:
  - ladder/ladder.go: Ladder type and validation
  - cmd/ladderctl: CLI over these definitions
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/ladder"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// LadderJSON is the serialized form of a ladder.
type LadderJSON struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Levels []LevelJSON `json:"levels" yaml:"levels"`
}

// LevelJSON is one level. MaxHours is omitted on the terminal level.
type LevelJSON struct {
	Level      int      `json:"level" yaml:"level"`
	MinHours   Decimal  `json:"min_hours" yaml:"min_hours"`
	MaxHours   *Decimal `json:"max_hours,omitempty" yaml:"max_hours,omitempty"`
	HourlyRate Decimal  `json:"hourly_rate" yaml:"hourly_rate"`
}

// FileJSON is the layout of a ladder file.
type FileJSON struct {
	Ladders []LadderJSON `json:"ladders" yaml:"ladders"`
}

// Decimal reads a number or numeric string in both JSON and YAML.
type Decimal struct {
	decimal.Decimal
}

func NewDecimal(d decimal.Decimal) Decimal { return Decimal{Decimal: d} }

// UnmarshalYAML accepts any scalar that parses as a decimal.
func (d *Decimal) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", node.Line, node.Value)
	}
	d.Decimal = v
	return nil
}

// MarshalYAML writes an unquoted number.
func (d Decimal) MarshalYAML() (interface{}, error) {
	v := d.String()
	tag := "!!int"
	if strings.Contains(v, ".") {
		tag = "!!float"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v}, nil
}

// =============================================================================
// LADDER FACTORY
// =============================================================================

// LadderFactory converts definitions to ladders.
type LadderFactory struct{}

// NewLadderFactory creates a new ladder factory.
func NewLadderFactory() *LadderFactory {
	return &LadderFactory{}
}

// ParseJSON parses one ladder from JSON.
func (f *LadderFactory) ParseJSON(data []byte) (*ladder.Ladder, error) {
	var lj LadderJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&lj); err != nil {
		return nil, fmt.Errorf("failed to parse ladder JSON: %w", err)
	}
	return f.FromJSON(lj)
}

// ParseYAML parses one ladder from YAML.
func (f *LadderFactory) ParseYAML(data []byte) (*ladder.Ladder, error) {
	var lj LadderJSON
	if err := decodeYAML(data, &lj); err != nil {
		return nil, fmt.Errorf("failed to parse ladder YAML: %w", err)
	}
	return f.FromJSON(lj)
}

// ParseFile parses a ladder file. format is "json" or "yaml".
func (f *LadderFactory) ParseFile(data []byte, format string) ([]ladder.Ladder, error) {
	var fj FileJSON
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fj); err != nil {
			return nil, fmt.Errorf("failed to parse ladder file: %w", err)
		}
	case "yaml", "yml":
		if err := decodeYAML(data, &fj); err != nil {
			return nil, fmt.Errorf("failed to parse ladder file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported ladder file format %q", format)
	}

	if len(fj.Ladders) == 0 {
		return nil, fmt.Errorf("ladder file defines no ladders")
	}
	seen := make(map[string]bool, len(fj.Ladders))
	ladders := make([]ladder.Ladder, 0, len(fj.Ladders))
	for _, lj := range fj.Ladders {
		if seen[lj.ID] {
			return nil, fmt.Errorf("ladder %q defined twice", lj.ID)
		}
		seen[lj.ID] = true
		l, err := f.FromJSON(lj)
		if err != nil {
			return nil, err
		}
		ladders = append(ladders, *l)
	}
	return ladders, nil
}

// LoadFile reads a ladder file, choosing the format from its extension.
func (f *LadderFactory) LoadFile(path string) ([]ladder.Ladder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ladder file: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return f.ParseFile(data, format)
}

// FromJSON converts and validates a definition.
func (f *LadderFactory) FromJSON(lj LadderJSON) (*ladder.Ladder, error) {
	if strings.TrimSpace(lj.ID) == "" {
		return nil, &ladder.InvalidLadderError{Reason: "id is required"}
	}
	l := &ladder.Ladder{
		ID:     lj.ID,
		Name:   lj.Name,
		Levels: make([]ladder.Level, 0, len(lj.Levels)),
	}
	if l.Name == "" {
		l.Name = lj.ID
	}
	for _, lv := range lj.Levels {
		level := ladder.Level{
			Level:      lv.Level,
			MinHours:   lv.MinHours.Decimal,
			HourlyRate: lv.HourlyRate.Decimal,
		}
		if lv.MaxHours != nil {
			max := lv.MaxHours.Decimal
			level.MaxHours = &max
		}
		l.Levels = append(l.Levels, level)
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// ToJSON converts a ladder back to its definition.
func (f *LadderFactory) ToJSON(l ladder.Ladder) LadderJSON {
	lj := LadderJSON{ID: l.ID, Name: l.Name}
	for _, lv := range l.Levels {
		level := LevelJSON{
			Level:      lv.Level,
			MinHours:   NewDecimal(lv.MinHours),
			HourlyRate: NewDecimal(lv.HourlyRate),
		}
		if lv.MaxHours != nil {
			max := NewDecimal(*lv.MaxHours)
			level.MaxHours = &max
		}
		lj.Levels = append(lj.Levels, level)
	}
	return lj
}

// MarshalYAML writes ladders in the ladder file layout.
func (f *LadderFactory) MarshalYAML(ladders ...ladder.Ladder) ([]byte, error) {
	fj := FileJSON{}
	for _, l := range ladders {
		fj.Ladders = append(fj.Ladders, f.ToJSON(l))
	}
	return yaml.Marshal(fj)
}

func decodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// =============================================================================
// PRESET LADDERS
// =============================================================================

// StandardLadderJSON is the three level ladder used by new installations.
func StandardLadderJSON(id, name string) string {
	return fmt.Sprintf(`{
  "id": %q,
  "name": %q,
  "levels": [
    {"level": 1, "min_hours": 0, "max_hours": 500, "hourly_rate": "200.00"},
    {"level": 2, "min_hours": 500, "max_hours": 1000, "hourly_rate": "210.00"},
    {"level": 3, "min_hours": 1000, "hourly_rate": "225.00"}
  ]
}`, id, name)
}

// StepLadderJSON builds a ladder with equal bands of bandHours, one level per
// rate. The last rate is the terminal level.
func StepLadderJSON(id, name string, bandHours int, rates ...string) string {
	levels := make([]string, 0, len(rates))
	for i, rate := range rates {
		min := i * bandHours
		if i == len(rates)-1 {
			levels = append(levels, fmt.Sprintf(`{"level": %d, "min_hours": %d, "hourly_rate": %q}`, i+1, min, rate))
			continue
		}
		levels = append(levels, fmt.Sprintf(`{"level": %d, "min_hours": %d, "max_hours": %d, "hourly_rate": %q}`,
			i+1, min, min+bandHours, rate))
	}
	return fmt.Sprintf(`{"id": %q, "name": %q, "levels": [%s]}`, id, name, strings.Join(levels, ", "))
}
