package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sippey/fog-city-dispatch-sub000/internal/cards"
	"github.com/sippey/fog-city-dispatch-sub000/internal/config"
	"github.com/sippey/fog-city-dispatch-sub000/internal/db"
	"github.com/sippey/fog-city-dispatch-sub000/internal/game"
	mw "github.com/sippey/fog-city-dispatch-sub000/internal/middleware"
)

func testCatalog() cards.Catalog {
	var catalog cards.Catalog
	for i := 1; i <= 3; i++ {
		catalog = append(catalog, cards.Card{
			ID:        i,
			Headline:  fmt.Sprintf("Call %d", i),
			StoryArc:  "Fog Bank",
			ArcNumber: fmt.Sprint(i),
			Responses: cards.Responses{
				cards.ResponseIgnore:  {Outcome: "No unit sent."},
				cards.ResponseBasic:   {Readiness: -20, Score: 50, Outcome: "One unit responds."},
				cards.ResponseMaximum: {Readiness: -90, Score: 120, Outcome: "All units respond."},
			},
		})
	}
	return catalog
}

type testServer struct {
	t      *testing.T
	server *Server
	db     *db.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	cfg := config.DefaultGame()
	cfg.DeckSize = 0
	cfg.PrimaryArc = "Fog Bank"
	cfg.DeltaDelivery = string(game.DeliverImmediate)
	cfg.OutcomeDuration = 0
	cfg.TutorialOutcomeDuration = 0
	cfg.Arcs = nil
	require.NoError(t, cfg.Validate())

	server := NewServer(database, Options{
		Catalog:        testCatalog(),
		Game:           cfg,
		Tokens:         mw.NewTokenIssuer("test-secret", time.Hour),
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	t.Cleanup(func() {
		server.Close()
		database.Close()
	})
	return &testServer{t: t, server: server, db: database}
}

func (ts *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, Response) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)

	var resp Response
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

// create starts a session and returns its id and token
func (ts *testServer) create() (string, string) {
	ts.t.Helper()
	rec, resp := ts.do(http.MethodPost, "/api/sessions", "", map[string]interface{}{"seed": 7})
	require.Equal(ts.t, http.StatusCreated, rec.Code)

	data := resp.Data.(map[string]interface{})
	return data["id"].(string), data["token"].(string)
}

func decode(t *testing.T, data interface{}, target interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, target))
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.create()
	assert.NotEmpty(t, token)

	rec, resp := ts.do(http.MethodGet, "/api/sessions/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var state game.State
	decode(t, resp.Data, &state)
	assert.Equal(t, game.PhaseActive, state.Phase)
	assert.Equal(t, 3, state.DeckSize)
	require.NotNil(t, state.CurrentCard)
	assert.Equal(t, 1, state.CurrentCard.ID, "arc cards are dealt in order")

	stored, err := ts.db.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Seed)
}

func TestCreateSessionInvalidBody(t *testing.T) {
	ts := newTestServer(t)
	rec, resp := ts.do(http.MethodPost, "/api/sessions", "", map[string]interface{}{"deck_size": -3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.create()
	otherID, otherToken := ts.create()
	require.NotEqual(t, id, otherID)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil)
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	rec = httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = ts.do(http.MethodGet, "/api/sessions/not-a-uuid", otherToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondFlow(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.create()
	base := "/api/sessions/" + id

	rec, resp := ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "basic"})
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)

	var body struct {
		Resolution cards.Resolution `json:"resolution"`
		State      game.State       `json:"state"`
	}
	decode(t, resp.Data, &body)
	assert.Equal(t, 80, body.Resolution.Readiness)
	assert.Equal(t, 50, body.State.Score)
	assert.Equal(t, game.PhaseShowingOutcome, body.State.Phase)

	rec, _ = ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "basic"})
	assert.Equal(t, http.StatusConflict, rec.Code, "outcome still showing")

	rec, _ = ts.do(http.MethodGet, base+"/result", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "not ended yet")

	rec, _ = ts.do(http.MethodPost, base+"/acknowledge", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "maximum"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "maximum costs more than 80")

	rec, _ = ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "accept"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = ts.do(http.MethodPost, base+"/powerup", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "current card is not a powerup")
}

func TestPlayToEnd(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.create()
	base := "/api/sessions/" + id

	for i := 0; i < 3; i++ {
		rec, resp := ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "basic"})
		require.Equal(t, http.StatusOK, rec.Code, resp.Error)
		rec, _ = ts.do(http.MethodPost, base+"/acknowledge", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, resp := ts.do(http.MethodGet, base+"/result", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result game.FinalScore
	decode(t, resp.Data, &result)
	assert.Equal(t, 150, result.Total)

	rec, resp = ts.do(http.MethodGet, base+"/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []game.Event
	decode(t, resp.Data, &events)
	assert.Equal(t, game.EventStarted, events[0].Type)
	assert.Equal(t, game.EventEnded, events[len(events)-1].Type)

	stored, err := ts.db.GetResult(id)
	require.NoError(t, err)
	assert.Equal(t, 150, stored.Total)
	assert.Equal(t, 3, stored.CardsHandled)

	rec, resp = ts.do(http.MethodGet, "/api/scores?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scores []db.ResultRecord
	decode(t, resp.Data, &scores)
	require.Len(t, scores, 1)
	assert.Equal(t, id, scores[0].SessionID)

	// Deleting removes the stored result and journal too.
	rec, _ = ts.do(http.MethodDelete, base, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodGet, base+"/result", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(http.MethodGet, base+"/history", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (ts *testServer) running() int {
	ts.server.enginesMu.RLock()
	defer ts.server.enginesMu.RUnlock()
	return len(ts.server.engines)
}

func TestEndedSessionsReleaseEngines(t *testing.T) {
	ts := newTestServer(t)

	var ids, tokens []string
	for i := 0; i < 20; i++ {
		id, token := ts.create()
		rec, _ := ts.do(http.MethodPost, "/api/sessions/"+id+"/end", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		ids = append(ids, id)
		tokens = append(tokens, token)
	}
	assert.Equal(t, 0, ts.running(), "ended sessions are served from storage")

	base := "/api/sessions/" + ids[0]
	rec, resp := ts.do(http.MethodGet, base, tokens[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state game.State
	decode(t, resp.Data, &state)
	assert.Equal(t, game.PhaseEnded, state.Phase)

	rec, _ = ts.do(http.MethodGet, base+"/result", tokens[0], nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = ts.do(http.MethodGet, base+"/history", tokens[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []game.Event
	decode(t, resp.Data, &events)
	assert.Equal(t, game.EventEnded, events[len(events)-1].Type)
}

func TestUnfinishedStoredSessionIsGone(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.create()

	// Simulate a restart: the engine is lost, the stored session remains.
	ts.server.enginesMu.Lock()
	ts.server.engines[id].Close()
	delete(ts.server.engines, id)
	ts.server.enginesMu.Unlock()

	rec, _ := ts.do(http.MethodGet, "/api/sessions/"+id, token, nil)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestEndEarly(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.create()
	base := "/api/sessions/" + id

	rec, _ := ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "basic"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := ts.do(http.MethodPost, base+"/end", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state game.State
	decode(t, resp.Data, &state)
	assert.Equal(t, game.PhaseEnded, state.Phase)

	rec, resp = ts.do(http.MethodGet, base+"/result", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result game.FinalScore
	decode(t, resp.Data, &result)
	assert.Equal(t, 50, result.Total)

	assert.Equal(t, 0, ts.running())
	rec, _ = ts.do(http.MethodPost, base+"/respond", token, map[string]string{"response": "basic"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "ended sessions no longer accept responses")
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id, token := ts.create()
	base := "/api/sessions/" + id

	rec, _ := ts.do(http.MethodDelete, base, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(http.MethodGet, base, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(http.MethodDelete, base, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListScoresInvalidLimit(t *testing.T) {
	ts := newTestServer(t)
	rec, _ := ts.do(http.MethodGet, "/api/scores?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
