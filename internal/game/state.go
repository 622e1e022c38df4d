package game

import (
	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/story"
)

// Phase is the lifecycle state of a session
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseActive         Phase = "active"
	PhaseShowingOutcome Phase = "showing_outcome"
	PhaseEnded          Phase = "ended"
)

// DeltaDelivery selects when a resolution's delta reaches the counters
type DeltaDelivery string

const (
	DeliverImmediate DeltaDelivery = "immediate"
	DeliverDeferred  DeltaDelivery = "deferred"
)

// Settings are the validated rule parameters of one session
type Settings struct {
	GameTimeSeconds        int
	StartingReadiness      int
	StartingCapacity       int
	ReadinessGainPerSecond int
	RecycleIgnoredCards    bool
	Delivery               DeltaDelivery
}

// PendingDelta is a resolved delta that has not been applied yet
type PendingDelta struct {
	Seq   int         `json:"seq"`
	Delta cards.Delta `json:"delta"`
}

// State is a snapshot of everything the presentation layer renders
type State struct {
	Phase          Phase             `json:"phase"`
	Readiness      int               `json:"readiness"`
	Capacity       int               `json:"capacity"`
	Score          int               `json:"score"`
	TimeRemaining  int               `json:"time_remaining"`
	DeckSize       int               `json:"deck_size"`
	RemainingIDs   []int             `json:"remaining_ids"`
	CurrentCard    *cards.Card       `json:"current_card,omitempty"`
	CardsHandled   int               `json:"cards_handled"`
	IsActive       bool              `json:"is_active"`
	TimeUp         bool              `json:"time_up"`
	DeckEmpty      bool              `json:"deck_empty"`
	LastResolution *cards.Resolution `json:"last_resolution,omitempty"`
	Pending        *PendingDelta     `json:"pending,omitempty"`
	Progress       story.Progress    `json:"progress"`
}

// OutcomeShowing reports whether a response is waiting to be acknowledged
func (s State) OutcomeShowing() bool {
	return s.Phase == PhaseShowingOutcome
}

// IsEnded reports whether the session reached its terminal state
func (s State) IsEnded() bool {
	return s.Phase == PhaseEnded
}
