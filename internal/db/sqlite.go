package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/game"
)

// ErrNotFound is returned when a session has no stored record
var ErrNotFound = errors.New("not found")

// SessionRecord describes how a session was created
type SessionRecord struct {
	ID        string    `json:"id"`
	Seed      int64     `json:"seed"`
	DeckSize  int       `json:"deck_size"`
	Tutorial  bool      `json:"tutorial"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultRecord is the stored outcome of a finished session
type ResultRecord struct {
	SessionID     string    `json:"session_id"`
	BaseScore     int       `json:"base_score"`
	Bonus         int       `json:"bonus"`
	Total         int       `json:"total"`
	CompletedArcs []string  `json:"completed_arcs"`
	CardsHandled  int       `json:"cards_handled"`
	TimeUp        bool      `json:"time_up"`
	EndedAt       time.Time `json:"ended_at"`
}

// DB wraps database operations
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	// Run migrations
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs database migrations
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		deck_size INTEGER NOT NULL,
		tutorial INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_results (
		session_id TEXT PRIMARY KEY,
		base_score INTEGER NOT NULL,
		bonus INTEGER NOT NULL,
		total INTEGER NOT NULL,
		completed_arcs_json TEXT NOT NULL,
		cards_handled INTEGER NOT NULL,
		time_up INTEGER NOT NULL,
		ended_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		type TEXT NOT NULL,
		time_remaining INTEGER NOT NULL,
		card_id INTEGER,
		story_arc TEXT,
		response TEXT,
		delta_json TEXT NOT NULL,
		outcome TEXT,
		details TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_results_total ON session_results(total DESC);
	CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id, seq);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveSession records a newly created session
func (db *DB) SaveSession(rec SessionRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT OR REPLACE INTO sessions (id, seed, deck_size, tutorial, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Seed, rec.DeckSize, boolToInt(rec.Tutorial), rec.CreatedAt)
	return err
}

// GetSession returns how a session was created
func (db *DB) GetSession(id string) (*SessionRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var (
		rec      SessionRecord
		tutorial int
	)
	err := db.conn.QueryRow(`
		SELECT id, seed, deck_size, tutorial, created_at FROM sessions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Seed, &rec.DeckSize, &tutorial, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Tutorial = intToBool(tutorial)
	return &rec, nil
}

// SaveFinished stores the result and journal of an ended session in one transaction
func (db *DB) SaveFinished(result ResultRecord, events []game.Event) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if result.EndedAt.IsZero() {
		result.EndedAt = time.Now().UTC()
	}
	if result.CompletedArcs == nil {
		result.CompletedArcs = []string{}
	}
	arcsJSON, err := json.Marshal(result.CompletedArcs)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO session_results (
			session_id, base_score, bonus, total, completed_arcs_json, cards_handled, time_up, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.SessionID, result.BaseScore, result.Bonus, result.Total, string(arcsJSON),
		result.CardsHandled, boolToInt(result.TimeUp), result.EndedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM session_events WHERE session_id = ?", result.SessionID); err != nil {
		return err
	}
	for _, event := range events {
		deltaJSON, err := json.Marshal(event.Delta)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO session_events (
				session_id, seq, type, time_remaining, card_id, story_arc, response, delta_json, outcome, details
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, result.SessionID, event.Seq, string(event.Type), event.TimeRemaining, event.CardID,
			event.StoryArc, string(event.Response), string(deltaJSON), event.Outcome, event.Details)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetResult returns the stored result of a session
func (db *DB) GetResult(sessionID string) (*ResultRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT session_id, base_score, bonus, total, completed_arcs_json, cards_handled, time_up, ended_at
		FROM session_results WHERE session_id = ?
	`, sessionID)
	rec, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListTopScores returns the best results, highest total first
func (db *DB) ListTopScores(limit int) ([]ResultRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.Query(`
		SELECT session_id, base_score, bonus, total, completed_arcs_json, cards_handled, time_up, ended_at
		FROM session_results
		ORDER BY total DESC, ended_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]ResultRecord, 0)
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}

	return results, rows.Err()
}

// LoadEvents returns the stored journal of a session in order
func (db *DB) LoadEvents(sessionID string) ([]game.Event, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT seq, type, time_remaining, card_id, story_arc, response, delta_json, outcome, details
		FROM session_events WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]game.Event, 0)
	for rows.Next() {
		var (
			event                          game.Event
			eventType, response, deltaJSON string
			storyArc, outcome, details     sql.NullString
			cardID                         sql.NullInt64
		)
		if err := rows.Scan(&event.Seq, &eventType, &event.TimeRemaining, &cardID, &storyArc,
			&response, &deltaJSON, &outcome, &details); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(deltaJSON), &event.Delta); err != nil {
			return nil, err
		}
		event.Type = game.EventType(eventType)
		event.Response = cards.ResponseType(response)
		event.CardID = int(cardID.Int64)
		event.StoryArc = storyArc.String
		event.Outcome = outcome.String
		event.Details = details.String
		events = append(events, event)
	}

	return events, rows.Err()
}

// DeleteSession deletes a session and all its data
func (db *DB) DeleteSession(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*ResultRecord, error) {
	var (
		rec      ResultRecord
		arcsJSON string
		timeUp   int
	)
	if err := row.Scan(&rec.SessionID, &rec.BaseScore, &rec.Bonus, &rec.Total, &arcsJSON,
		&rec.CardsHandled, &timeUp, &rec.EndedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(arcsJSON), &rec.CompletedArcs); err != nil {
		return nil, err
	}
	rec.TimeUp = intToBool(timeUp)
	return &rec, nil
}

// Helper functions
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
