// Package emissions converts logged activities into CO2-equivalent kilograms.
//
// Conversion is driven entirely by a factor table (category → canonical unit,
// base factor, unit multipliers, subcategory factors). The table is data: the
// default one is embedded from factors.yaml and an alternative document can be
// loaded with LoadTableFile. All arithmetic is done on exact decimals and the
// result is rounded once, to one decimal place, at the boundary.
package emissions

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed factors.yaml
var defaultTableYAML []byte

var defaultTable = sync.OnceValue(func() *Table {
	table, err := ParseTable(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("emissions: embedded factor table is invalid: %v", err))
	}
	return table
})

// DefaultTable returns the embedded factor table.
func DefaultTable() *Table {
	return defaultTable()
}

// Table is an immutable, validated factor table.
type Table struct {
	version    string
	categories map[string]*categoryEntry
	names      []string
}

type categoryEntry struct {
	name          string
	canonicalUnit string
	baseFactor    *decimal.Decimal
	units         map[string]unitEntry
	unitNames     []string
	subcategories map[string]subcategoryEntry
	subNames      []string
}

type unitEntry struct {
	name       string
	multiplier decimal.Decimal
}

type subcategoryEntry struct {
	name   string
	factor decimal.Decimal
	// units overrides category multipliers for this subcategory only.
	units map[string]decimal.Decimal
}

type tableDocument struct {
	Version    string                      `yaml:"version"`
	Categories map[string]categoryDocument `yaml:"categories"`
}

type categoryDocument struct {
	CanonicalUnit string                         `yaml:"canonical_unit"`
	BaseFactor    *string                        `yaml:"base_factor"`
	Units         map[string]string              `yaml:"units"`
	Subcategories map[string]subcategoryDocument `yaml:"subcategories"`
}

type subcategoryDocument struct {
	Factor string            `yaml:"factor"`
	Units  map[string]string `yaml:"units"`
}

// LoadTableFile reads a factor table document from disk.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open factor table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable reads a factor table document from r.
func LoadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read factor table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML factor table.
func ParseTable(data []byte) (*Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode factor table: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("factor table has no categories")
	}

	table := &Table{
		version:    doc.Version,
		categories: make(map[string]*categoryEntry, len(doc.Categories)),
	}
	for rawName, catDoc := range doc.Categories {
		name := normalizeKey(rawName)
		entry, err := buildCategory(name, catDoc)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", rawName, err)
		}
		if _, dup := table.categories[name]; dup {
			return nil, fmt.Errorf("category %s declared twice", rawName)
		}
		table.categories[name] = entry
		table.names = append(table.names, name)
	}
	sort.Strings(table.names)
	return table, nil
}

func buildCategory(name string, doc categoryDocument) (*categoryEntry, error) {
	if strings.TrimSpace(doc.CanonicalUnit) == "" {
		return nil, fmt.Errorf("canonical_unit is required")
	}
	entry := &categoryEntry{
		name:          name,
		canonicalUnit: strings.TrimSpace(doc.CanonicalUnit),
		units:         make(map[string]unitEntry, len(doc.Units)),
		subcategories: make(map[string]subcategoryEntry, len(doc.Subcategories)),
	}

	if doc.BaseFactor != nil {
		factor, err := parseNonNegative(*doc.BaseFactor)
		if err != nil {
			return nil, fmt.Errorf("base_factor: %w", err)
		}
		entry.baseFactor = &factor
	}

	for rawUnit, rawMultiplier := range doc.Units {
		multiplier, err := parsePositive(rawMultiplier)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", rawUnit, err)
		}
		key := normalizeKey(rawUnit)
		if _, dup := entry.units[key]; dup {
			return nil, fmt.Errorf("unit %s declared twice", rawUnit)
		}
		entry.units[key] = unitEntry{name: strings.TrimSpace(rawUnit), multiplier: multiplier}
		entry.unitNames = append(entry.unitNames, strings.TrimSpace(rawUnit))
	}
	canonical, ok := entry.units[normalizeKey(entry.canonicalUnit)]
	if !ok {
		return nil, fmt.Errorf("canonical unit %s missing from units", entry.canonicalUnit)
	}
	if !canonical.multiplier.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("canonical unit %s must have multiplier 1", entry.canonicalUnit)
	}
	sort.Strings(entry.unitNames)

	for rawSub, subDoc := range doc.Subcategories {
		factor, err := parseNonNegative(subDoc.Factor)
		if err != nil {
			return nil, fmt.Errorf("subcategory %s: %w", rawSub, err)
		}
		sub := subcategoryEntry{name: normalizeKey(rawSub), factor: factor}
		for rawUnit, rawMultiplier := range subDoc.Units {
			key := normalizeKey(rawUnit)
			if _, known := entry.units[key]; !known {
				return nil, fmt.Errorf("subcategory %s overrides unknown unit %s", rawSub, rawUnit)
			}
			multiplier, err := parsePositive(rawMultiplier)
			if err != nil {
				return nil, fmt.Errorf("subcategory %s unit %s: %w", rawSub, rawUnit, err)
			}
			if sub.units == nil {
				sub.units = make(map[string]decimal.Decimal)
			}
			sub.units[key] = multiplier
		}
		entry.subcategories[sub.name] = sub
		entry.subNames = append(entry.subNames, sub.name)
	}
	sort.Strings(entry.subNames)
	return entry, nil
}

func parseNonNegative(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative number %q", raw)
	}
	return value, nil
}

func parsePositive(raw string) (decimal.Decimal, error) {
	value, err := parseNonNegative(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsZero() {
		return decimal.Zero, fmt.Errorf("multiplier must be positive, got %q", raw)
	}
	return value, nil
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Version reports the version string declared by the table document.
func (t *Table) Version() string {
	return t.version
}

// Categories lists category names in lexical order.
func (t *Table) Categories() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// CategoryInfo describes one category for clients that need to build forms
// consistent with the resolver.
type CategoryInfo struct {
	Name          string            `json:"name"`
	CanonicalUnit string            `json:"canonical_unit"`
	BaseFactor    *float64          `json:"base_factor,omitempty"`
	Units         []string          `json:"units"`
	Subcategories []SubcategoryInfo `json:"subcategories"`
}

// SubcategoryInfo describes a subcategory factor.
type SubcategoryInfo struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Catalog returns the category → {subcategories, units} view of the table.
func (t *Table) Catalog() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(t.names))
	for _, name := range t.names {
		entry := t.categories[name]
		info := CategoryInfo{
			Name:          entry.name,
			CanonicalUnit: entry.canonicalUnit,
			Units:         append([]string(nil), entry.unitNames...),
			Subcategories: make([]SubcategoryInfo, 0, len(entry.subNames)),
		}
		if entry.baseFactor != nil {
			f := entry.baseFactor.InexactFloat64()
			info.BaseFactor = &f
		}
		for _, subName := range entry.subNames {
			info.Subcategories = append(info.Subcategories, SubcategoryInfo{
				Name:   subName,
				Factor: entry.subcategories[subName].factor.InexactFloat64(),
			})
		}
		out = append(out, info)
	}
	return out
}

func (t *Table) category(name string) (*categoryEntry, bool) {
	entry, ok := t.categories[normalizeKey(name)]
	return entry, ok
}

// multiplier returns the conversion into the canonical unit, honouring
// subcategory overrides.
func (c *categoryEntry) multiplier(sub *subcategoryEntry, unit string) (decimal.Decimal, bool) {
	key := normalizeKey(unit)
	base, ok := c.units[key]
	if !ok {
		return decimal.Zero, false
	}
	if sub != nil {
		if override, ok := sub.units[key]; ok {
			return override, true
		}
	}
	return base.multiplier, true
}
