// Package catalog holds the static reward table mapping detected item
// categories and names to eco points and carbon-saved values.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is the reward granted for one catalog key.
type Entry struct {
	Points        int     `yaml:"points"`
	CarbonSavedKg float64 `yaml:"carbon_saved_kg"`
	Action        string  `yaml:"action"`
}

// Catalog maps a lowercase category or item name to its reward. It is
// loaded once at process start and never mutated afterwards.
type Catalog struct {
	entries map[string]Entry
}

// Default returns the built-in reward catalog.
func Default() *Catalog {
	return &Catalog{entries: map[string]Entry{
		"plastic":        {Points: 10, CarbonSavedKg: 0.2, Action: "recycle"},
		"plastic_bottle": {Points: 10, CarbonSavedKg: 0.2, Action: "recycle"},
		"metal":          {Points: 8, CarbonSavedKg: 0.15, Action: "recycle"},
		"aluminum_can":   {Points: 8, CarbonSavedKg: 0.15, Action: "recycle"},
		"paper":          {Points: 5, CarbonSavedKg: 0.05, Action: "recycle"},
		"cardboard":      {Points: 5, CarbonSavedKg: 0.05, Action: "recycle"},
		"glass":          {Points: 12, CarbonSavedKg: 0.25, Action: "recycle"},
		"organic":        {Points: 3, CarbonSavedKg: 0.01, Action: "compost"},
		"organic_waste":  {Points: 3, CarbonSavedKg: 0.01, Action: "compost"},
	}}
}

// Load reads a YAML catalog file and merges it over the built-in defaults.
// File entries win over defaults for the same key.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var overrides map[string]Entry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	c := Default()
	for key, entry := range overrides {
		if entry.Points < 0 {
			return nil, fmt.Errorf("catalog entry %q: negative points", key)
		}
		if entry.CarbonSavedKg < 0 {
			return nil, fmt.Errorf("catalog entry %q: negative carbon value", key)
		}
		c.entries[strings.ToLower(key)] = entry
	}
	return c, nil
}

// Lookup resolves a detection to a reward by category first, then by name.
// The second return value is false when neither key matches.
func (c *Catalog) Lookup(category, name string) (Entry, bool) {
	if e, ok := c.entries[strings.ToLower(category)]; ok {
		return e, true
	}
	if e, ok := c.entries[strings.ToLower(name)]; ok {
		return e, true
	}
	return Entry{}, false
}

// Len returns the number of entries in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}
