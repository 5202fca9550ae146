package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"agent-orchestrator/internal/auth"
)

// problem is the RFC 7807 payload returned on denial.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// Middleware gates a route group with the given limiter. Denials respond
// 429 with the standard rate-limit headers; admitted requests are
// recorded and carry their remaining quota in the response headers.
func Middleware(limiter Limiter, logger Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			clientID := ClientID(c)

			allowed, info := limiter.Check(ctx, clientID)
			if !allowed {
				h := c.Response().Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("X-RateLimit-Reset", strconv.Itoa(info.RetryAfter))
				h.Set("Retry-After", strconv.Itoa(info.RetryAfter))
				h.Set(echo.HeaderContentType, "application/problem+json")
				return c.JSON(http.StatusTooManyRequests, problem{
					Type:   "about:blank",
					Title:  "Too Many Requests",
					Status: http.StatusTooManyRequests,
					Detail: fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", info.RetryAfter),
				})
			}
			if info.Err != nil {
				logger.Warn("rate limiter degraded, request admitted", "client_id", clientID, "error", info.Err)
			}

			limiter.Record(ctx, clientID)

			h := c.Response().Header()
			h.Set("X-RateLimit-Remaining-Minute", strconv.Itoa(info.MinuteRemaining))
			h.Set("X-RateLimit-Remaining-Hour", strconv.Itoa(info.HourRemaining))
			return next(c)
		}
	}
}

// ClientID derives the limiter key for a request: the authenticated
// principal when present, otherwise the originating address (first entry
// of a forwarded-for chain if one exists).
func ClientID(c echo.Context) string {
	if userID, ok := auth.UserID(c.Request().Context()); ok {
		return "user:" + userID
	}

	if forwarded := c.Request().Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return "ip:" + strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil {
		return "ip:" + c.Request().RemoteAddr
	}
	return "ip:" + host
}
