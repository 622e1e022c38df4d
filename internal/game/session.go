package game

import (
	"errors"
	"fmt"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/story"
)

var (
	ErrSessionNotActive = errors.New("session not active")
	ErrOutcomePending   = errors.New("outcome still showing")
	ErrNoOutcome        = errors.New("no outcome to acknowledge")
	ErrSessionNotEnded  = errors.New("session not ended")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrNotPowerup       = errors.New("current card is not a powerup")
)

// Session is the authoritative state owner of one dispatcher shift.
// It has no clock of its own: callers drive it with Tick and Acknowledge.
type Session struct {
	ID       string
	settings Settings
	rule     *story.Rule
	deck     *cards.Deck

	phase         Phase
	readiness     int
	capacity      int
	score         int
	timeRemaining int
	cardsHandled  int
	timeUp        bool
	progress      story.Progress
	last          *cards.Resolution
	pending       *PendingDelta
	deltaSeq      int
	journal       Journal
}

// NewSession creates a session over an already ordered deck
func NewSession(id string, order []cards.Card, settings Settings, progress story.Progress, rule *story.Rule) (*Session, error) {
	for i := range order {
		if err := order[i].Validate(); err != nil {
			return nil, err
		}
	}
	if rule == nil {
		rule = story.MustRule(story.RuleThreshold)
	}
	if progress == nil {
		progress = story.Progress{}
	}
	if settings.Delivery == "" {
		settings.Delivery = DeliverImmediate
	}

	readiness := settings.StartingReadiness
	if readiness > settings.StartingCapacity {
		readiness = settings.StartingCapacity
	}
	if readiness < 0 {
		readiness = 0
	}

	return &Session{
		ID:            id,
		settings:      settings,
		rule:          rule,
		deck:          cards.NewDeck(order),
		phase:         PhaseNotStarted,
		readiness:     readiness,
		capacity:      settings.StartingCapacity,
		timeRemaining: settings.GameTimeSeconds,
		progress:      progress.Clone(),
	}, nil
}

// Settings returns the rule parameters the session runs with
func (s *Session) Settings() Settings {
	return s.settings
}

// Start presents the first card, or ends at once when there is nothing to play
func (s *Session) Start() (State, error) {
	if s.phase != PhaseNotStarted {
		return s.Snapshot(), ErrAlreadyStarted
	}

	s.phase = PhaseActive
	s.journal.Record(Event{
		Type:          EventStarted,
		TimeRemaining: s.timeRemaining,
		Details:       fmt.Sprintf("shift started with %d cards", s.deck.Size()),
	})

	if s.timeRemaining <= 0 {
		s.timeRemaining = 0
		s.timeUp = true
	}
	if s.deck.IsEmpty() || s.timeUp {
		s.end()
	}
	return s.Snapshot(), nil
}

// Tick advances the shift clock by one second
func (s *Session) Tick() (State, error) {
	if !s.clockRunning() {
		return s.Snapshot(), ErrSessionNotActive
	}

	s.timeRemaining--
	s.readiness += s.settings.ReadinessGainPerSecond
	if s.readiness > s.capacity {
		s.readiness = s.capacity
	}
	if s.readiness < 0 {
		s.readiness = 0
	}

	if s.timeRemaining <= 0 {
		s.timeRemaining = 0
		s.timeUp = true
		s.journal.Record(Event{Type: EventTimeUp, Details: "shift clock ran out"})
		// An outcome on screen finishes first; Acknowledge then ends the shift.
		if s.phase == PhaseActive {
			s.end()
		}
	}
	return s.Snapshot(), nil
}

func (s *Session) clockRunning() bool {
	return (s.phase == PhaseActive || s.phase == PhaseShowingOutcome) && !s.timeUp
}

// Submit answers the current card. Rejections leave the session untouched.
func (s *Session) Submit(rt cards.ResponseType) (*cards.Resolution, error) {
	if err := s.checkSubmit(); err != nil {
		return nil, err
	}
	return s.resolve(rt)
}

// AcceptPowerup accepts the current card, which must be a powerup
func (s *Session) AcceptPowerup() (*cards.Resolution, error) {
	if err := s.checkSubmit(); err != nil {
		return nil, err
	}
	if card := s.deck.Current(); card == nil || !card.IsPowerup {
		return nil, ErrNotPowerup
	}
	return s.resolve(cards.ResponseAccept)
}

func (s *Session) checkSubmit() error {
	switch s.phase {
	case PhaseActive:
		return nil
	case PhaseShowingOutcome:
		return ErrOutcomePending
	default:
		return ErrSessionNotActive
	}
}

func (s *Session) resolve(rt cards.ResponseType) (*cards.Resolution, error) {
	card := s.deck.Current()
	if card == nil {
		return nil, ErrSessionNotActive
	}

	// A delta still in flight belongs to the previous card and lands before this one is judged.
	s.flushPending()

	res, err := cards.Resolve(cards.ResolveInput{
		Readiness:      s.readiness,
		Capacity:       s.capacity,
		RecycleIgnored: s.settings.RecycleIgnoredCards,
	}, card, rt)
	if err != nil {
		return nil, err
	}

	progress, err := s.rule.Update(s.progress, card, rt)
	if err != nil {
		return nil, err
	}
	s.progress = progress

	s.deck.Apply(res.DeckAction)
	s.cardsHandled++
	s.last = res

	if s.settings.Delivery == DeliverDeferred {
		s.deltaSeq++
		s.pending = &PendingDelta{Seq: s.deltaSeq, Delta: res.Delta}
	} else {
		s.readiness, s.capacity, s.score = cards.ApplyDelta(s.readiness, s.capacity, s.score, res.Delta)
	}

	s.journal.Record(newResolvedEvent(s.timeRemaining, card, res))
	s.phase = PhaseShowingOutcome
	return res, nil
}

// Pending returns the delta waiting for delivery, if any
func (s *Session) Pending() *PendingDelta {
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// ApplyPending delivers the pending delta with the given sequence number.
// It returns false when that delta was already delivered or superseded.
func (s *Session) ApplyPending(seq int) bool {
	if s.pending == nil || s.pending.Seq != seq {
		return false
	}
	s.flushPending()
	return true
}

func (s *Session) flushPending() {
	if s.pending == nil {
		return
	}
	pending := s.pending
	s.pending = nil
	s.readiness, s.capacity, s.score = cards.ApplyDelta(s.readiness, s.capacity, s.score, pending.Delta)
	s.journal.Record(newDeliveredEvent(s.timeRemaining, pending))
}

// Acknowledge closes the outcome display and presents the next card or ends the shift
func (s *Session) Acknowledge() (State, error) {
	if s.phase != PhaseShowingOutcome {
		return s.Snapshot(), ErrNoOutcome
	}
	if s.deck.IsEmpty() || s.timeUp {
		s.end()
	} else {
		s.phase = PhaseActive
	}
	return s.Snapshot(), nil
}

// End stops the shift early; any pending delta is delivered first
func (s *Session) End() State {
	if s.phase != PhaseEnded {
		s.end()
	}
	return s.Snapshot()
}

func (s *Session) end() {
	s.flushPending()
	s.phase = PhaseEnded
	s.journal.Record(Event{
		Type:          EventEnded,
		TimeRemaining: s.timeRemaining,
		Details:       fmt.Sprintf("shift ended with score %d after %d cards", s.score, s.cardsHandled),
	})
}

// Result computes the final score of an ended session
func (s *Session) Result() (FinalScore, error) {
	if s.phase != PhaseEnded {
		return FinalScore{}, ErrSessionNotEnded
	}
	return Finalize(s.score, s.progress), nil
}

// Events returns the session journal
func (s *Session) Events() []Event {
	return s.journal.Events()
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	state := State{
		Phase:          s.phase,
		Readiness:      s.readiness,
		Capacity:       s.capacity,
		Score:          s.score,
		TimeRemaining:  s.timeRemaining,
		DeckSize:       s.deck.Size(),
		RemainingIDs:   s.deck.IDs(),
		CardsHandled:   s.cardsHandled,
		IsActive:       s.clockRunning(),
		TimeUp:         s.timeUp,
		DeckEmpty:      s.deck.IsEmpty(),
		LastResolution: s.last,
		Pending:        s.Pending(),
		Progress:       s.progress.Clone(),
	}
	if s.phase == PhaseActive {
		state.CurrentCard = s.deck.Current()
	}
	return state
}
