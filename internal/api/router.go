package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/config"
	"github.com/sippey/fog-city-dispatch-sub000/internal/db"
	"github.com/sippey/fog-city-dispatch-sub000/internal/game"
	"github.com/sippey/fog-city-dispatch-sub000/internal/logging"
	mw "github.com/sippey/fog-city-dispatch-sub000/internal/middleware"
	"github.com/sippey/fog-city-dispatch-sub000/internal/validation"
)

// Options configure the API server
type Options struct {
	Catalog        cards.Catalog
	Game           *config.GameConfig
	Tokens         *mw.TokenIssuer
	Logger         *slog.Logger
	TickInterval   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxy keys rate limits on X-Forwarded-For; set only behind a proxy that overwrites it
	TrustProxy     bool
	MaxBodyBytes   int64
}

// Server handles HTTP requests
type Server struct {
	router      chi.Router
	db          *db.DB
	opts        Options
	logger      *slog.Logger
	engines     map[string]*game.Engine
	enginesMu   sync.RWMutex
	rateLimiter *mw.RateLimiter
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServer creates a new API server
func NewServer(database *db.DB, opts Options) *Server {
	if opts.Game == nil {
		opts.Game = config.DefaultGame()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tokens == nil {
		opts.Tokens = mw.NewTokenIssuer(uuid.NewString(), 2*time.Hour)
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 * 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:      chi.NewRouter(),
		db:          database,
		opts:        opts,
		logger:      opts.Logger,
		engines:     make(map[string]*game.Engine),
		rateLimiter: mw.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, opts.TrustProxy),
		ctx:         ctx,
		cancel:      cancel,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(mw.SecurityHeadersMiddleware)
	s.router.Use(mw.MaxBodySizeMiddleware(s.opts.MaxBodyBytes))

	// Public endpoints (no auth required)
	s.router.Post("/api/sessions", s.createSession)
	s.router.Get("/api/scores", s.listScores)

	// Protected endpoints: the bearer token must grant the session in the URL
	s.router.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Use(validateSessionID)
		r.Use(s.opts.Tokens.AuthMiddleware)
		r.Get("/", s.getSession)
		r.Delete("/", s.deleteSession)
		r.Post("/respond", s.respond)
		r.Post("/powerup", s.acceptPowerup)
		r.Post("/acknowledge", s.acknowledge)
		r.Post("/end", s.endSession)
		r.Get("/result", s.getResult)
		r.Get("/history", s.getHistory)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops every running session without scoring them
func (s *Server) Close() {
	s.cancel()

	s.enginesMu.Lock()
	defer s.enginesMu.Unlock()
	for id, engine := range s.engines {
		engine.Close()
		delete(s.engines, id)
	}
}

// Response wraps API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response (sanitized)
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// statusFor maps game rejections to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrOutcomePending),
		errors.Is(err, game.ErrSessionNotActive),
		errors.Is(err, game.ErrSessionNotEnded),
		errors.Is(err, game.ErrNoOutcome),
		errors.Is(err, game.ErrNotPowerup):
		return http.StatusConflict
	case errors.Is(err, cards.ErrUnaffordable),
		errors.Is(err, cards.ErrResponseNotOffered):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger stores a logger tagged with the request ID in the request context
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.NewContext(r.Context(), logger)))
	})
}

func validateSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateSessionID(chi.URLParam(r, "id")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid session ID")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// engine looks up a running session, writing 404 when absent
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*game.Engine, bool) {
	s.enginesMu.RLock()
	engine, ok := s.engines[chi.URLParam(r, "id")]
	s.enginesMu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return engine, true
}

// createSession deals a deck and starts a shift
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed     *int64 `json:"seed"`
		DeckSize int    `json:"deck_size"`
		Tutorial bool   `json:"tutorial"`
	}
	logger := logging.FromContext(r.Context())

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validation.ValidateDeckSize(req.DeckSize); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	shiftOpts, err := s.opts.Game.ShiftOptions(req.DeckSize)
	if err != nil {
		logger.Error("invalid game config", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	// Generate server-side session ID (don't trust client)
	sessionID := uuid.New().String()

	session, err := game.NewShift(sessionID, s.opts.Catalog, shiftOpts, rand.New(rand.NewSource(seed)))
	if err != nil {
		logger.Error("failed to deal shift", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if err := s.db.SaveSession(db.SessionRecord{
		ID:       sessionID,
		Seed:     seed,
		DeckSize: shiftOpts.Deck.DeckSize,
		Tutorial: req.Tutorial,
	}); err != nil {
		logger.Error("failed to save session", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	token, err := s.opts.Tokens.Issue(sessionID)
	if err != nil {
		logger.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	engine := game.NewEngine(session, game.EngineOptions{
		TickInterval:    s.opts.TickInterval,
		DeltaDelay:      s.opts.Game.DeltaDelay,
		OutcomeDuration: s.opts.Game.OutcomeDelay(req.Tutorial),
		Logger:          s.logger,
		OnEnd:           s.persistResult,
	})

	s.enginesMu.Lock()
	s.engines[sessionID] = engine
	s.enginesMu.Unlock()

	state, err := engine.Start(s.ctx)
	if err != nil {
		logger.Error("failed to start session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	logger.Info("session created", "session_id", sessionID, "seed", seed, "tutorial", req.Tutorial)
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data: map[string]interface{}{
			"id":    sessionID,
			"token": token,
			"seed":  seed,
			"state": state,
		},
	})
}

// persistResult stores a finished session and drops its engine; it runs as the engine's end hook.
// Once stored, result and history are served from the database.
func (s *Server) persistResult(id string, result game.FinalScore, events []game.Event) {
	rec := db.ResultRecord{
		SessionID:     id,
		BaseScore:     result.BaseScore,
		Bonus:         result.Bonus,
		Total:         result.Total,
		CompletedArcs: result.CompletedArcs,
		CardsHandled:  len(game.EventsOfType(events, game.EventResolved)),
		TimeUp:        len(game.EventsOfType(events, game.EventTimeUp)) > 0,
	}

	if err := s.db.SaveFinished(rec, events); err != nil {
		// Keep the engine so the result stays reachable from memory.
		s.logger.Error("failed to save result", "session_id", id, "error", err)
		return
	}

	s.enginesMu.Lock()
	delete(s.engines, id)
	s.enginesMu.Unlock()
}

// getSession returns the current state snapshot, or the final state of a stored session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	s.enginesMu.RLock()
	engine, running := s.engines[sessionID]
	s.enginesMu.RUnlock()

	if running {
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    engine.Snapshot(),
		})
		return
	}

	if _, err := s.db.GetSession(sessionID); err != nil {
		s.writeStorageError(w, r, err, "Session not found")
		return
	}
	rec, err := s.db.GetResult(sessionID)
	if errors.Is(err, db.ErrNotFound) {
		// Created but never finished, e.g. the server restarted mid-shift.
		writeError(w, http.StatusGone, "Session is no longer running")
		return
	}
	if err != nil {
		s.writeStorageError(w, r, err, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: game.State{
			Phase:        game.PhaseEnded,
			Score:        rec.BaseScore,
			CardsHandled: rec.CardsHandled,
			TimeUp:       rec.TimeUp,
		},
	})
}

// writeStorageError writes 404 for missing records and a logged 500 otherwise
func (s *Server) writeStorageError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	logging.FromContext(r.Context()).Error("storage lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Storage error")
}

// respond submits a response to the current card
func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Response string `json:"response"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rt, err := validation.ValidateResponseType(req.Response)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	s.writeResolution(w, engine, func() (*cards.Resolution, error) {
		return engine.Submit(rt)
	})
}

// acceptPowerup accepts the current powerup card
func (s *Server) acceptPowerup(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	s.writeResolution(w, engine, engine.AcceptPowerup)
}

func (s *Server) writeResolution(w http.ResponseWriter, engine *game.Engine, resolve func() (*cards.Resolution, error)) {
	res, err := resolve()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"resolution": res,
			"state":      engine.Snapshot(),
		},
	})
}

// acknowledge closes the outcome display
func (s *Server) acknowledge(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	state, err := engine.Acknowledge()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    state,
	})
}

// endSession quits early and scores the shift as it stands
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    engine.End(),
	})
}

// getResult returns the final score of an ended session
func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	s.enginesMu.RLock()
	engine, running := s.engines[sessionID]
	s.enginesMu.RUnlock()

	if running {
		result, err := engine.Result()
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
		return
	}

	rec, err := s.db.GetResult(sessionID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Result not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to load result", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load result")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: game.FinalScore{
			BaseScore:     rec.BaseScore,
			Bonus:         rec.Bonus,
			Total:         rec.Total,
			CompletedArcs: rec.CompletedArcs,
		},
	})
}

// getHistory returns the session journal
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	s.enginesMu.RLock()
	engine, running := s.engines[sessionID]
	s.enginesMu.RUnlock()

	var events []game.Event
	if running {
		events = engine.Events()
	} else {
		var err error
		events, err = s.db.LoadEvents(sessionID)
		if err != nil {
			logging.FromContext(r.Context()).Error("failed to load history", "session_id", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to load history")
			return
		}
		if len(events) == 0 {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    events,
	})
}

// deleteSession tears a session down, cancels its timers and removes its stored data
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	s.enginesMu.Lock()
	engine, running := s.engines[sessionID]
	delete(s.engines, sessionID)
	s.enginesMu.Unlock()

	if running {
		engine.Close()
	}

	if _, err := s.db.GetSession(sessionID); err != nil {
		s.writeStorageError(w, r, err, "Session not found")
		return
	}
	if err := s.db.DeleteSession(sessionID); err != nil {
		logging.FromContext(r.Context()).Error("failed to delete session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    "Session deleted",
	})
}

// listScores returns the leaderboard
func (s *Server) listScores(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || validation.ValidateLimit(n) != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	scores, err := s.db.ListTopScores(limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to load scores", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load scores")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    scores,
	})
}
