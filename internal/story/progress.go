package story

import (
	"fmt"
	"sort"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
)

// ArcDef configures a story arc that can earn a multiplier
type ArcDef struct {
	Name       string  `json:"name" yaml:"name"`
	TotalCards int     `json:"total_cards" yaml:"total_cards"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// ArcProgress tracks how the player has handled one arc
type ArcProgress struct {
	TotalCards     int     `json:"total_cards"`
	CardsResponded int     `json:"cards_responded"`
	CardsIgnored   int     `json:"cards_ignored"`
	IsCompleted    bool    `json:"is_completed"`
	Multiplier     float64 `json:"multiplier"`
}

// Encountered returns how many arc cards have been resolved either way
func (a ArcProgress) Encountered() int {
	return a.CardsResponded + a.CardsIgnored
}

// Progress holds arc progress keyed by arc name
type Progress map[string]ArcProgress

// NewProgress initializes progress for every configured arc
func NewProgress(defs []ArcDef) Progress {
	progress := make(Progress, len(defs))
	for _, def := range defs {
		progress[def.Name] = ArcProgress{
			TotalCards: def.TotalCards,
			Multiplier: def.Multiplier,
		}
	}
	return progress
}

// Clone returns a copy that can be changed independently
func (p Progress) Clone() Progress {
	clone := make(Progress, len(p))
	for name, arc := range p {
		clone[name] = arc
	}
	return clone
}

// Names returns the arc names in sorted order
func (p Progress) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Update records a resolved response and returns the new progress.
// Powerups, standalone cards and arcs without progress leave it unchanged.
// Completion is sticky: a completed arc stays completed.
func (r *Rule) Update(progress Progress, card *cards.Card, rt cards.ResponseType) (Progress, error) {
	if card == nil || !card.InArc() {
		return progress, nil
	}
	arc, ok := progress[card.StoryArc]
	if !ok {
		return progress, nil
	}

	switch rt {
	case cards.ResponseIgnore:
		arc.CardsIgnored++
	case cards.ResponseBasic, cards.ResponseMaximum:
		arc.CardsResponded++
	default:
		return progress, fmt.Errorf("response %s cannot advance story arc %q", rt, card.StoryArc)
	}

	if !arc.IsCompleted {
		done, err := r.Completed(arc)
		if err != nil {
			return progress, err
		}
		arc.IsCompleted = done
	}

	next := progress.Clone()
	next[card.StoryArc] = arc
	return next, nil
}
