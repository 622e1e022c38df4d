package cards

import (
	"errors"
	"fmt"
)

var (
	// ErrUnaffordable is the rejection for a response costing more readiness than available
	ErrUnaffordable = errors.New("response not affordable")
	// ErrResponseNotOffered is the rejection for a tier the card does not expose
	ErrResponseNotOffered = errors.New("response not offered by card")
)

// DeckAction tells the session what to do with the resolved card
type DeckAction string

const (
	DeckRemove  DeckAction = "remove"
	DeckRecycle DeckAction = "recycle"
)

// ResolveInput is the slice of session state the resolver reads
type ResolveInput struct {
	Readiness      int
	Capacity       int
	RecycleIgnored bool
}

// Delta is a relative state change produced by a resolution
type Delta struct {
	Readiness int `json:"readiness"`
	Capacity  int `json:"capacity"`
	Score     int `json:"score"`
}

// Resolution is the outcome of an accepted response
type Resolution struct {
	CardID     int          `json:"card_id"`
	Response   ResponseType `json:"response"`
	Delta      Delta        `json:"delta"`
	Readiness  int          `json:"readiness"`
	Capacity   int          `json:"capacity"`
	Outcome    string       `json:"outcome"`
	DeckAction DeckAction   `json:"deck_action"`
}

// Resolve decides the effect of answering card with rt. It never mutates anything;
// a rejected response returns ErrUnaffordable or ErrResponseNotOffered.
func Resolve(in ResolveInput, card *Card, rt ResponseType) (*Resolution, error) {
	if card == nil {
		return nil, fmt.Errorf("%w: no card to resolve", ErrInvalidCard)
	}
	if !card.Offers(rt) {
		return nil, fmt.Errorf("%w: card %d, %s", ErrResponseNotOffered, card.ID, rt)
	}
	resp, ok := card.Responses[rt]
	if !ok {
		return nil, fmt.Errorf("%w: card %d is missing the %s response", ErrInvalidCard, card.ID, rt)
	}

	if in.Readiness+resp.Readiness < 0 {
		return nil, fmt.Errorf("%w: card %d %s needs %d readiness, have %d",
			ErrUnaffordable, card.ID, rt, -resp.Readiness, in.Readiness)
	}

	capacity := in.Capacity + resp.Capacity
	if capacity < 0 {
		capacity = 0
	}
	ceiling := in.Capacity
	if capacity < ceiling {
		ceiling = capacity
	}
	readiness := clamp(in.Readiness+resp.Readiness, 0, ceiling)

	action := DeckRemove
	if rt == ResponseIgnore && in.RecycleIgnored && !card.IsPowerup {
		action = DeckRecycle
	}

	return &Resolution{
		CardID:   card.ID,
		Response: rt,
		Delta: Delta{
			Readiness: readiness - in.Readiness,
			Capacity:  capacity - in.Capacity,
			Score:     resp.Score,
		},
		Readiness:  readiness,
		Capacity:   capacity,
		Outcome:    resp.Outcome,
		DeckAction: action,
	}, nil
}

// ApplyDelta adds d to the given counters, keeping readiness within [0, capacity]
func ApplyDelta(readiness, capacity, score int, d Delta) (int, int, int) {
	capacity += d.Capacity
	if capacity < 0 {
		capacity = 0
	}
	readiness = clamp(readiness+d.Readiness, 0, capacity)
	return readiness, capacity, score + d.Score
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
