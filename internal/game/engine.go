package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
)

// EngineOptions control the clocks that drive a session
type EngineOptions struct {
	// TickInterval is the length of one game second. Zero disables the clock.
	TickInterval time.Duration
	// DeltaDelay is how long a deferred delta waits before it is applied
	DeltaDelay time.Duration
	// OutcomeDuration acknowledges outcomes automatically. Zero waits for the player.
	OutcomeDuration time.Duration
	Logger          *slog.Logger
	// OnEnd runs once, outside the engine lock, after the session ends
	OnEnd func(id string, result FinalScore, events []Event)
}

// Engine runs a Session in real time: one clock goroutine and the
// timers for deferred deltas and outcome display. All timers stop when
// the session ends or the engine is closed.
type Engine struct {
	ID        string
	CreatedAt time.Time

	session *Session
	opts    EngineOptions
	logger  *slog.Logger

	mu         sync.RWMutex
	cancel     context.CancelFunc
	deltaTimer *time.Timer
	ackTimer   *time.Timer
	outcomeGen int
	closed     bool
	notified   bool
	done       chan struct{}
}

// NewEngine wraps a session that has not been started yet
func NewEngine(session *Session, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ID:        session.ID,
		CreatedAt: time.Now(),
		session:   session,
		opts:      opts,
		logger:    logger.With("session_id", session.ID),
		done:      make(chan struct{}),
	}
}

// Start starts the session and its clock
func (e *Engine) Start(ctx context.Context) (State, error) {
	e.mu.Lock()
	state, err := e.session.Start()
	if err != nil {
		e.mu.Unlock()
		return state, err
	}
	e.logger.Info("session started", "deck_size", state.DeckSize, "time", state.TimeRemaining)

	if !state.IsEnded() && e.opts.TickInterval > 0 {
		runCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		go e.run(runCtx)
	}
	finish := e.afterChangeLocked(state)
	e.mu.Unlock()

	finish()
	return state, nil
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Tick(); err != nil {
				return
			}
		}
	}
}

// Tick advances the clock by one game second
func (e *Engine) Tick() (State, error) {
	e.mu.Lock()
	if e.closed {
		state := e.session.Snapshot()
		e.mu.Unlock()
		return state, ErrSessionNotActive
	}
	state, err := e.session.Tick()
	if err != nil {
		e.mu.Unlock()
		return state, err
	}
	finish := e.afterChangeLocked(state)
	e.mu.Unlock()

	finish()
	return state, nil
}

// Submit answers the current card
func (e *Engine) Submit(rt cards.ResponseType) (*cards.Resolution, error) {
	return e.resolve(func() (*cards.Resolution, error) {
		return e.session.Submit(rt)
	})
}

// AcceptPowerup accepts the current powerup card
func (e *Engine) AcceptPowerup() (*cards.Resolution, error) {
	return e.resolve(e.session.AcceptPowerup)
}

func (e *Engine) resolve(fn func() (*cards.Resolution, error)) (*cards.Resolution, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrSessionNotActive
	}
	// A submission flushes any pending delta, so its timer has nothing left to do.
	e.stopDeltaTimerLocked()

	res, err := fn()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.logger.Info("card resolved",
		"card_id", res.CardID,
		"response", res.Response,
		"readiness", res.Readiness,
		"capacity", res.Capacity,
		"deck_action", res.DeckAction,
	)

	if pending := e.session.Pending(); pending != nil {
		seq := pending.Seq
		e.deltaTimer = time.AfterFunc(e.opts.DeltaDelay, func() { e.deliver(seq) })
	}

	e.outcomeGen++
	if e.opts.OutcomeDuration > 0 {
		gen := e.outcomeGen
		e.ackTimer = time.AfterFunc(e.opts.OutcomeDuration, func() { e.autoAcknowledge(gen) })
	}

	finish := e.afterChangeLocked(e.session.Snapshot())
	e.mu.Unlock()

	finish()
	return res, nil
}

func (e *Engine) deliver(seq int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.session.ApplyPending(seq) {
		e.logger.Debug("deferred delta applied", "seq", seq)
	}
}

func (e *Engine) autoAcknowledge(gen int) {
	e.mu.Lock()
	if e.closed || gen != e.outcomeGen {
		e.mu.Unlock()
		return
	}
	state, err := e.session.Acknowledge()
	if err != nil {
		e.mu.Unlock()
		return
	}
	finish := e.afterChangeLocked(state)
	e.mu.Unlock()

	finish()
}

// Acknowledge closes the outcome display
func (e *Engine) Acknowledge() (State, error) {
	e.mu.Lock()
	if e.closed {
		state := e.session.Snapshot()
		e.mu.Unlock()
		return state, ErrSessionNotActive
	}
	state, err := e.session.Acknowledge()
	if err != nil {
		e.mu.Unlock()
		return state, err
	}
	e.outcomeGen++
	if e.ackTimer != nil {
		e.ackTimer.Stop()
		e.ackTimer = nil
	}
	finish := e.afterChangeLocked(state)
	e.mu.Unlock()

	finish()
	return state, nil
}

// End finishes the shift early, as when the player quits
func (e *Engine) End() State {
	e.mu.Lock()
	if e.closed {
		state := e.session.Snapshot()
		e.mu.Unlock()
		return state
	}
	state := e.session.End()
	finish := e.afterChangeLocked(state)
	e.mu.Unlock()

	finish()
	return state
}

// Close tears the engine down without touching the session.
// Pending timers are cancelled and never fire afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdownLocked()
}

// Done is closed once the engine has shut down its timers
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Snapshot returns the current state
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Snapshot()
}

// Result returns the final score once the session has ended
func (e *Engine) Result() (FinalScore, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Result()
}

// Events returns the session journal
func (e *Engine) Events() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Events()
}

// afterChangeLocked stops everything once the session has ended and
// returns the end hook to run after the lock is released.
func (e *Engine) afterChangeLocked(state State) func() {
	if !state.IsEnded() || e.notified {
		return func() {}
	}
	e.notified = true
	e.shutdownLocked()

	result, _ := e.session.Result()
	events := e.session.Events()
	e.logger.Info("session ended",
		"score", result.Total,
		"bonus", result.Bonus,
		"cards_handled", state.CardsHandled,
		"time_up", state.TimeUp,
	)

	hook := e.opts.OnEnd
	if hook == nil {
		return func() {}
	}
	id := e.ID
	return func() { hook(id, result, events) }
}

func (e *Engine) stopDeltaTimerLocked() {
	if e.deltaTimer != nil {
		e.deltaTimer.Stop()
		e.deltaTimer = nil
	}
}

func (e *Engine) shutdownLocked() {
	if e.closed {
		return
	}
	e.closed = true
	if e.cancel != nil {
		e.cancel()
	}
	e.stopDeltaTimerLocked()
	if e.ackTimer != nil {
		e.ackTimer.Stop()
		e.ackTimer = nil
	}
	close(e.done)
}
