// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/pkg/errutil"
)

var tracer = otel.Tracer("trainhub/web")

// Context keys for the authenticated principal.
const (
	ContextUserKey    = "auth.user"
	ContextSessionKey = "auth.session"
)

// RequestRecorder counts served requests.
type RequestRecorder interface {
	HTTPRequest(route string, status int)
}

// CurrentUser returns the user an auth middleware attached to c, or nil.
func CurrentUser(c *gin.Context) *auth.User {
	if v, ok := c.Get(ContextUserKey); ok {
		if user, ok := v.(*auth.User); ok {
			return user
		}
	}
	return nil
}

// CurrentSession returns the session an auth middleware attached to c, or nil.
func CurrentSession(c *gin.Context) *auth.Session {
	if v, ok := c.Get(ContextSessionKey); ok {
		if session, ok := v.(*auth.Session); ok {
			return session
		}
	}
	return nil
}

// authenticate validates the request session and attaches the result to c.
// A malformed cookie leaves the request anonymous. It reports false after
// writing a 500 if validation failed on a storage fault.
func authenticate(c *gin.Context, sessions *auth.SessionManager, logger *slog.Logger) bool {
	user, session, err := sessions.Authenticate(c.Request.Context(), Transport(c))
	if errors.Is(err, auth.ErrUnauthorized) {
		logger.DebugContext(c.Request.Context(), "ignoring malformed session cookie")
		return true
	}
	if err != nil {
		errutil.LogErrorContext(c.Request.Context(), logger, "session validation failed", err)
		internalError(c)
		return false
	}
	if user != nil {
		c.Set(ContextUserKey, user)
		c.Set(ContextSessionKey, session)
	}
	return true
}

// OptionalSession validates the session cookie if one is present.
// Requests without a live session continue anonymously.
func OptionalSession(sessions *auth.SessionManager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, sessions, logger) {
			return
		}
		c.Next()
	}
}

// RequireSession rejects requests without a live session. GET requests are
// redirected to the sign-in page; other methods get 401.
func RequireSession(sessions *auth.SessionManager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, sessions, logger) {
			return
		}
		if CurrentUser(c) != nil {
			c.Next()
			return
		}
		if c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusSeeOther, auth.SignedOutPath)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

// RequestLogger logs each request once it completes.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if user := CurrentUser(c); user != nil {
			attrs = append(attrs, "user_id", user.ID.String())
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// Tracing wraps each request in a server span.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Metrics counts requests by route and status.
func Metrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		recorder.HTTPRequest(c.FullPath(), c.Writer.Status())
	}
}
