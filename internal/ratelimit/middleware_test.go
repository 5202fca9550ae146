package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-orchestrator/internal/auth"
	"agent-orchestrator/internal/logging"
)

// stubLimiter returns a fixed decision and remembers recorded clients.
type stubLimiter struct {
	allowed  bool
	info     Info
	recorded []string
}

func (s *stubLimiter) Check(context.Context, string) (bool, Info) { return s.allowed, s.info }
func (s *stubLimiter) Record(_ context.Context, clientID string) {
	s.recorded = append(s.recorded, clientID)
}

func runMiddleware(t *testing.T, limiter Limiter, mutate func(*http.Request) *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4444"
	if mutate != nil {
		req = mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(limiter, logging.NewLogger())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func TestMiddlewareDenialHeaders(t *testing.T) {
	limiter := &stubLimiter{
		allowed: false,
		info:    Info{Window: WindowMinute, Limit: 5, RetryAfter: 42},
	}

	rec, err := runMiddleware(t, limiter, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "42", rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Try again in 42 seconds")
	assert.Empty(t, limiter.recorded, "a denied request must not be recorded")
}

func TestMiddlewareRecordsAdmittedRequests(t *testing.T) {
	limiter := &stubLimiter{allowed: true, info: Info{MinuteRemaining: 7, HourRemaining: 90}}

	rec, err := runMiddleware(t, limiter, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ip:203.0.113.7"}, limiter.recorded)
	assert.Equal(t, "7", rec.Header().Get("X-RateLimit-Remaining-Minute"))
	assert.Equal(t, "90", rec.Header().Get("X-RateLimit-Remaining-Hour"))
}

func TestClientIDDerivation(t *testing.T) {
	limiter := &stubLimiter{allowed: true}

	// Authenticated principal wins over any address.
	_, err := runMiddleware(t, limiter, func(req *http.Request) *http.Request {
		req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
		return req.WithContext(auth.WithUserID(req.Context(), "alice@example.com"))
	})
	require.NoError(t, err)
	assert.Equal(t, "user:alice@example.com", limiter.recorded[len(limiter.recorded)-1])

	// First forwarded-for entry when unauthenticated.
	_, err = runMiddleware(t, limiter, func(req *http.Request) *http.Request {
		req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
		return req
	})
	require.NoError(t, err)
	assert.Equal(t, "ip:198.51.100.1", limiter.recorded[len(limiter.recorded)-1])
}
