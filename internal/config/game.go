// YAML loader for the game rules
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/game"
	"github.com/sippey/fog-city-dispatch-sub000/internal/story"
)

// ErrInvalidConfig is returned when a configuration value is out of range
var ErrInvalidConfig = errors.New("invalid config")

// GameConfig is the rule set a session is built from
type GameConfig struct {
	DeckSize                int            `yaml:"deck_size"`
	GameTimeSeconds         int            `yaml:"game_time_seconds"`
	StartingReadiness       int            `yaml:"starting_readiness"`
	StartingCapacity        int            `yaml:"starting_capacity"`
	ReadinessGainPerSecond  int            `yaml:"readiness_gain_per_second"`
	RecycleIgnoredCards     bool           `yaml:"recycle_ignored_cards"`
	PrimaryArc              string         `yaml:"primary_arc"`
	PowerupFraction         float64        `yaml:"powerup_fraction"`
	Ordering                string         `yaml:"ordering"`
	CompletionRule          string         `yaml:"completion_rule"`
	DeltaDelivery           string         `yaml:"delta_delivery"`
	DeltaDelay              time.Duration  `yaml:"delta_delay"`
	OutcomeDuration         time.Duration  `yaml:"outcome_duration"`
	TutorialOutcomeDuration time.Duration  `yaml:"tutorial_outcome_duration"`
	Arcs                    []story.ArcDef `yaml:"arcs"`
}

// DefaultGame returns the stock rule set
func DefaultGame() *GameConfig {
	return &GameConfig{
		DeckSize:                40,
		GameTimeSeconds:         180,
		StartingReadiness:       100,
		StartingCapacity:        200,
		ReadinessGainPerSecond:  1,
		RecycleIgnoredCards:     false,
		PrimaryArc:              "Fog Bank",
		PowerupFraction:         cards.DefaultPowerupFraction,
		Ordering:                string(cards.OrderingSmart),
		CompletionRule:          story.RuleThreshold,
		DeltaDelivery:           string(game.DeliverDeferred),
		DeltaDelay:              time.Second,
		OutcomeDuration:         time.Second,
		TutorialOutcomeDuration: 3 * time.Second,
		Arcs: []story.ArcDef{
			{Name: "Fog Bank", TotalCards: 5, Multiplier: 2.0},
			{Name: "Cable Car", TotalCards: 3, Multiplier: 1.5},
		},
	}
}

// LoadGame reads a YAML rule file on top of the defaults and validates it.
// An empty path returns the defaults.
func LoadGame(path string) (*GameConfig, error) {
	cfg := DefaultGame()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read game config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal game config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *GameConfig) Validate() error {
	switch {
	case c.DeckSize < 0:
		return fmt.Errorf("%w: deck_size must not be negative", ErrInvalidConfig)
	case c.GameTimeSeconds <= 0:
		return fmt.Errorf("%w: game_time_seconds must be positive", ErrInvalidConfig)
	case c.StartingCapacity < 0:
		return fmt.Errorf("%w: starting_capacity must not be negative", ErrInvalidConfig)
	case c.StartingReadiness < 0 || c.StartingReadiness > c.StartingCapacity:
		return fmt.Errorf("%w: starting_readiness must be within [0, starting_capacity]", ErrInvalidConfig)
	case c.ReadinessGainPerSecond < 0:
		return fmt.Errorf("%w: readiness_gain_per_second must not be negative", ErrInvalidConfig)
	case c.PowerupFraction < 0 || c.PowerupFraction > 1:
		return fmt.Errorf("%w: powerup_fraction must be within [0, 1]", ErrInvalidConfig)
	case c.DeltaDelay < 0 || c.OutcomeDuration < 0 || c.TutorialOutcomeDuration < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}

	switch cards.Ordering(c.Ordering) {
	case cards.OrderingSmart, cards.OrderingInterleave:
	default:
		return fmt.Errorf("%w: unknown ordering %q", ErrInvalidConfig, c.Ordering)
	}

	switch game.DeltaDelivery(c.DeltaDelivery) {
	case game.DeliverImmediate, game.DeliverDeferred:
	default:
		return fmt.Errorf("%w: unknown delta_delivery %q", ErrInvalidConfig, c.DeltaDelivery)
	}

	if _, err := story.NewRule(c.CompletionRule); err != nil {
		return fmt.Errorf("%w: completion_rule: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Arcs))
	for _, arc := range c.Arcs {
		if arc.Name == "" || arc.Name == cards.ArcRandom || arc.Name == cards.ArcPowerup {
			return fmt.Errorf("%w: arc name %q is reserved or empty", ErrInvalidConfig, arc.Name)
		}
		if seen[arc.Name] {
			return fmt.Errorf("%w: duplicate arc %q", ErrInvalidConfig, arc.Name)
		}
		seen[arc.Name] = true
		if arc.TotalCards <= 0 {
			return fmt.Errorf("%w: arc %q needs total_cards > 0", ErrInvalidConfig, arc.Name)
		}
		if arc.Multiplier < 1 {
			return fmt.Errorf("%w: arc %q multiplier must be at least 1", ErrInvalidConfig, arc.Name)
		}
	}
	return nil
}

// Settings converts the rule set into session settings
func (c *GameConfig) Settings() game.Settings {
	return game.Settings{
		GameTimeSeconds:        c.GameTimeSeconds,
		StartingReadiness:      c.StartingReadiness,
		StartingCapacity:       c.StartingCapacity,
		ReadinessGainPerSecond: c.ReadinessGainPerSecond,
		RecycleIgnoredCards:    c.RecycleIgnoredCards,
		Delivery:               game.DeltaDelivery(c.DeltaDelivery),
	}
}

// DeckOptions converts the rule set into deck builder options
func (c *GameConfig) DeckOptions() cards.DeckOptions {
	return cards.DeckOptions{
		DeckSize:        c.DeckSize,
		PrimaryArc:      c.PrimaryArc,
		PowerupFraction: c.PowerupFraction,
		Ordering:        cards.Ordering(c.Ordering),
	}
}

// Rule compiles the configured completion rule
func (c *GameConfig) Rule() (*story.Rule, error) {
	return story.NewRule(c.CompletionRule)
}

// ShiftOptions compiles the rule set into options for game.NewShift.
// A positive deckSize overrides the configured one.
func (c *GameConfig) ShiftOptions(deckSize int) (game.ShiftOptions, error) {
	rule, err := c.Rule()
	if err != nil {
		return game.ShiftOptions{}, err
	}
	deck := c.DeckOptions()
	if deckSize > 0 {
		deck.DeckSize = deckSize
	}
	return game.ShiftOptions{
		Deck:     deck,
		Settings: c.Settings(),
		Arcs:     c.Arcs,
		Rule:     rule,
	}, nil
}

// ArcMismatches lists configured arcs whose total_cards differs from the catalog
func (c *GameConfig) ArcMismatches(catalog cards.Catalog) []string {
	sizes := catalog.ArcSizes()
	var mismatched []string
	for _, arc := range c.Arcs {
		if sizes[arc.Name] != arc.TotalCards {
			mismatched = append(mismatched, fmt.Sprintf("%s (configured %d, catalog %d)", arc.Name, arc.TotalCards, sizes[arc.Name]))
		}
	}
	return mismatched
}

// OutcomeDelay returns how long outcomes stay on screen
func (c *GameConfig) OutcomeDelay(tutorial bool) time.Duration {
	if tutorial {
		return c.TutorialOutcomeDuration
	}
	return c.OutcomeDuration
}
