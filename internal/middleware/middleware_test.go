package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, false)
	handler := rl.Middleware(http.HandlerFunc(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")
}

func TestRateLimiterRejectionIsJSON(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	handler := rl.Middleware(http.HandlerFunc(okHandler))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assertErrorEnvelope(t, rec)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.7", NewRateLimiter(1, 1, false).clientIP(req), "header ignored without a trusted proxy")
	assert.Equal(t, "203.0.113.9", NewRateLimiter(1, 1, true).clientIP(req))
}

func TestRateLimiterForgedHeadersShareOneBucket(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	handler := rl.Middleware(http.HandlerFunc(okHandler))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 1, rl.Size())
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		rl.Allow(fmt.Sprintf("10.1.0.%d", i))
	}
	require.Equal(t, 10, rl.Size())

	now = now.Add(DefaultIdleTTL + time.Second)
	rl.Allow("10.2.0.1")
	assert.Equal(t, 1, rl.Size(), "only the fresh client remains")
}

func assertErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)
}

func TestTokenRoundTrip(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)

	token, err := ti.Issue("session-1")
	require.NoError(t, err)

	id, err := ti.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", id)

	_, err = NewTokenIssuer("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Minute)
	ti.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := ti.Issue("session-1")
	require.NoError(t, err)

	ti.now = time.Now
	_, err = ti.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	router := chi.NewRouter()
	router.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(ti.AuthMiddleware)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			id, ok := SessionFromContext(r.Context())
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			io.WriteString(w, id)
		})
	})

	token, err := ti.Issue("abc")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid", "/sessions/abc/", "Bearer " + token, http.StatusOK},
		{"missing", "/sessions/abc/", "", http.StatusUnauthorized},
		{"garbage", "/sessions/abc/", "Bearer nope", http.StatusUnauthorized},
		{"other session", "/sessions/xyz/", "Bearer " + token, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "abc", rec.Body.String())
			} else {
				assertErrorEnvelope(t, rec)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestMaxBodySize(t *testing.T) {
	handler := MaxBodySizeMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large a body")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
