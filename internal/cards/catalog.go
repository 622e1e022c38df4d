package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the static card collection a deck is drawn from
type Catalog []Card

// catalogFile is the wrapped form of a catalog file
type catalogFile struct {
	Cards []Card `json:"cards" yaml:"cards"`
}

// LoadCatalog reads a JSON or YAML catalog, picking the format by extension
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseCatalog(data, format)
}

// ParseCatalog decodes and validates catalog data.
// Both a bare list of cards and an object with a "cards" key are accepted.
func ParseCatalog(data []byte, format string) (Catalog, error) {
	var list []Card

	switch format {
	case "yaml":
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			if err := yaml.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("parse catalog YAML: %w", err)
			}
		} else {
			list = file.Cards
		}
	case "json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("parse catalog JSON: %w", err)
			}
		} else {
			var file catalogFile
			if err := json.Unmarshal(trimmed, &file); err != nil {
				return nil, fmt.Errorf("parse catalog JSON: %w", err)
			}
			list = file.Cards
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	catalog := Catalog(list)
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Validate checks every card and id uniqueness
func (c Catalog) Validate() error {
	seen := make(map[int]bool, len(c))
	for i := range c {
		card := &c[i]
		if seen[card.ID] {
			return fmt.Errorf("%w: duplicate card id %d", ErrInvalidCard, card.ID)
		}
		seen[card.ID] = true
		if err := card.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ByArc returns the cards tagged with the given story arc, in catalog order
func (c Catalog) ByArc(arc string) []Card {
	var result []Card
	for _, card := range c {
		if card.StoryArc == arc && !card.IsPowerup {
			result = append(result, card)
		}
	}
	return result
}

// Powerups returns all powerup cards
func (c Catalog) Powerups() []Card {
	var result []Card
	for _, card := range c {
		if card.IsPowerup {
			result = append(result, card)
		}
	}
	return result
}

// ArcSizes counts the cards of each named story arc
func (c Catalog) ArcSizes() map[string]int {
	sizes := make(map[string]int)
	for i := range c {
		if c[i].InArc() {
			sizes[c[i].StoryArc]++
		}
	}
	return sizes
}
