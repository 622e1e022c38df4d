package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/config"
	"github.com/sippey/fog-city-dispatch-sub000/internal/game"
	"github.com/sippey/fog-city-dispatch-sub000/internal/logging"
)

var (
	playCatalog        string
	playConfig         string
	playSeed           int64
	playDeckSize       int
	playSecondsPerCard int
	playStrategy       string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Auto-play one shift and print the result",
	Long:  `Deal a deck and play it headless with a fixed strategy. Useful for balancing card data.`,
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playCatalog, "catalog", "data/cards.json", "card catalog (JSON or YAML)")
	playCmd.Flags().StringVar(&playConfig, "config", "", "game config YAML (defaults when empty)")
	playCmd.Flags().Int64Var(&playSeed, "seed", 0, "deck seed (0 picks one from the clock)")
	playCmd.Flags().IntVar(&playDeckSize, "deck-size", 0, "override the configured deck size")
	playCmd.Flags().IntVar(&playSecondsPerCard, "seconds-per-card", 3, "game seconds spent on each card")
	playCmd.Flags().StringVar(&playStrategy, "strategy", "greedy", "greedy (best affordable) or cautious (basic when affordable)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), logLevel)

	gameCfg, err := config.LoadGame(playConfig)
	if err != nil {
		return err
	}
	// A headless shift applies deltas at once; nobody watches the animation.
	gameCfg.DeltaDelivery = string(game.DeliverImmediate)

	catalog, err := cards.LoadCatalog(playCatalog)
	if err != nil {
		return err
	}

	opts, err := gameCfg.ShiftOptions(playDeckSize)
	if err != nil {
		return err
	}

	seed := playSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	session, err := game.NewShift(uuid.NewString(), catalog, opts, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	logger.Info("shift dealt", "seed", seed, "deck_size", session.Snapshot().DeckSize)

	pick, err := strategy(playStrategy)
	if err != nil {
		return err
	}

	result, err := autoPlay(session, pick, playSecondsPerCard)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), session, result)
	return nil
}

// chooser picks a response for a non-powerup card
type chooser func(card *cards.Card, readiness int) cards.ResponseType

func strategy(name string) (chooser, error) {
	affordable := func(card *cards.Card, rt cards.ResponseType, readiness int) bool {
		return readiness+card.Responses[rt].Readiness >= 0
	}

	switch name {
	case "greedy":
		return func(card *cards.Card, readiness int) cards.ResponseType {
			for _, rt := range []cards.ResponseType{cards.ResponseMaximum, cards.ResponseBasic} {
				if affordable(card, rt, readiness) {
					return rt
				}
			}
			return cards.ResponseIgnore
		}, nil
	case "cautious":
		return func(card *cards.Card, readiness int) cards.ResponseType {
			if affordable(card, cards.ResponseBasic, readiness) {
				return cards.ResponseBasic
			}
			return cards.ResponseIgnore
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// autoPlay drives a session to its end, spending secondsPerCard ticks on every card
func autoPlay(session *game.Session, pick chooser, secondsPerCard int) (game.FinalScore, error) {
	if _, err := session.Start(); err != nil {
		return game.FinalScore{}, err
	}

	for {
		state := session.Snapshot()
		if state.IsEnded() {
			break
		}

		card := state.CurrentCard
		var err error
		if card.IsPowerup {
			_, err = session.AcceptPowerup()
		} else {
			_, err = session.Submit(pick(card, state.Readiness))
		}
		if errors.Is(err, cards.ErrUnaffordable) {
			_, err = session.Submit(cards.ResponseIgnore)
		}
		if err != nil {
			return game.FinalScore{}, fmt.Errorf("card %d: %w", card.ID, err)
		}

		for i := 0; i < secondsPerCard; i++ {
			if _, err := session.Tick(); err != nil {
				break
			}
		}
		if _, err := session.Acknowledge(); err != nil {
			return game.FinalScore{}, err
		}
	}

	return session.Result()
}

func printResult(w io.Writer, session *game.Session, result game.FinalScore) {
	for _, e := range game.EventsOfType(session.Events(), game.EventResolved) {
		fmt.Fprintf(w, "[%3ds] #%-4d %-10s %-8s %+4d pts  %s\n",
			e.TimeRemaining, e.CardID, e.StoryArc, e.Response, e.Delta.Score, e.Outcome)
	}

	state := session.Snapshot()
	fmt.Fprintf(w, "\nCards handled: %d (time up: %v)\n", state.CardsHandled, state.TimeUp)
	for _, name := range state.Progress.Names() {
		arc := state.Progress[name]
		fmt.Fprintf(w, "Arc %-12s responded %d, ignored %d of %d, completed: %v\n",
			name, arc.CardsResponded, arc.CardsIgnored, arc.TotalCards, arc.IsCompleted)
	}
	fmt.Fprintf(w, "Base score: %d\nBonus: %d\nTotal: %d\n", result.BaseScore, result.Bonus, result.Total)
}
