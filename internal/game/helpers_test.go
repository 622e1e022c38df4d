package game

import (
	"fmt"
	"testing"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/story"
)

func callCard(id int, arc string) cards.Card {
	return cards.Card{
		ID:       id,
		Headline: fmt.Sprintf("Call %d", id),
		StoryArc: arc,
		Responses: cards.Responses{
			cards.ResponseIgnore:  {Outcome: "No unit sent."},
			cards.ResponseBasic:   {Readiness: -20, Score: 50, Outcome: "One unit responds."},
			cards.ResponseMaximum: {Readiness: -40, Capacity: 10, Score: 120, Outcome: "All units respond."},
		},
	}
}

func powerupCard(id, value int) cards.Card {
	return cards.Card{
		ID:           id,
		Headline:     "Shift change",
		StoryArc:     cards.ArcPowerup,
		IsPowerup:    true,
		PowerupValue: value,
		Responses: cards.Responses{
			cards.ResponseAccept: {Readiness: value, Outcome: "Fresh crews check in."},
		},
	}
}

func testSettings() Settings {
	return Settings{
		GameTimeSeconds:   60,
		StartingReadiness: 100,
		StartingCapacity:  200,
		Delivery:          DeliverImmediate,
	}
}

// startSession creates and starts a session over the given deck
func startSession(t *testing.T, settings Settings, order []cards.Card, arcs ...story.ArcDef) *Session {
	t.Helper()
	session, err := NewSession("test-session", order, settings, story.NewProgress(arcs), story.MustRule(story.RuleThreshold))
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := session.Start(); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	return session
}
