package game

import (
	"fmt"
	"math/rand"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/story"
)

// ShiftOptions bundles everything needed to deal and run one session
type ShiftOptions struct {
	Deck     cards.DeckOptions
	Settings Settings
	Arcs     []story.ArcDef
	Rule     *story.Rule
}

// NewShift builds a deck from the catalog and wraps it in a new session
func NewShift(id string, catalog cards.Catalog, opts ShiftOptions, rng *rand.Rand) (*Session, error) {
	order, err := cards.BuildDeck(catalog, opts.Deck, rng)
	if err != nil {
		return nil, fmt.Errorf("build deck: %w", err)
	}
	return NewSession(id, order, opts.Settings, story.NewProgress(opts.Arcs), opts.Rule)
}
