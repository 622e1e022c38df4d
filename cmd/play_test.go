package main

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/config"
	"github.com/sippey/fog-city-dispatch-sub000/internal/game"
)

func playCatalogFixture() cards.Catalog {
	catalog := cards.Catalog{}
	for i := 1; i <= 12; i++ {
		catalog = append(catalog, cards.Card{
			ID:       i,
			StoryArc: cards.ArcRandom,
			Responses: cards.Responses{
				cards.ResponseIgnore:  {},
				cards.ResponseBasic:   {Readiness: -30, Score: 40},
				cards.ResponseMaximum: {Readiness: -60, Score: 100},
			},
		})
	}
	catalog = append(catalog, cards.Card{
		ID:        13,
		StoryArc:  cards.ArcPowerup,
		IsPowerup: true,
		Responses: cards.Responses{cards.ResponseAccept: {Readiness: 50}},
	})
	return catalog
}

// TestAutoPlay tests that a headless shift always reaches a final score
func TestAutoPlay(t *testing.T) {
	cfg := config.DefaultGame()
	cfg.DeltaDelivery = string(game.DeliverImmediate)

	for _, name := range []string{"greedy", "cautious"} {
		opts, err := cfg.ShiftOptions(10)
		if err != nil {
			t.Fatalf("ShiftOptions failed: %v", err)
		}
		session, err := game.NewShift("play", playCatalogFixture(), opts, rand.New(rand.NewSource(3)))
		if err != nil {
			t.Fatalf("NewShift failed: %v", err)
		}
		pick, err := strategy(name)
		if err != nil {
			t.Fatalf("strategy failed: %v", err)
		}

		result, err := autoPlay(session, pick, 2)
		if err != nil {
			t.Fatalf("%s: autoPlay failed: %v", name, err)
		}
		if result.Total <= 0 {
			t.Errorf("%s: expected a positive score, got %+v", name, result)
		}
		if got := session.Snapshot().CardsHandled; got != 10 {
			t.Errorf("%s: expected 10 cards handled, got %d", name, got)
		}

		var out bytes.Buffer
		printResult(&out, session, result)
		if !strings.Contains(out.String(), "Total:") {
			t.Errorf("%s: missing total in output", name)
		}
	}
}

// TestStrategyUnknown tests rejecting an unknown strategy name
func TestStrategyUnknown(t *testing.T) {
	if _, err := strategy("reckless"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

// TestGreedyFallsBack tests the affordability fallbacks
func TestGreedyFallsBack(t *testing.T) {
	pick, _ := strategy("greedy")
	card := &playCatalogFixture()[0]

	cases := map[int]cards.ResponseType{
		100: cards.ResponseMaximum,
		40:  cards.ResponseBasic,
		10:  cards.ResponseIgnore,
	}
	for readiness, want := range cases {
		if got := pick(card, readiness); got != want {
			t.Errorf("readiness %d: expected %s, got %s", readiness, want, got)
		}
	}
}
