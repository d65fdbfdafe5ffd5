// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web is the HTTP surface for signup, login, logout and the training
// catalog. It adapts gin requests to the auth package's cookie transport.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/internal/catalog"
)

// Deps are the collaborators the web server needs.
type Deps struct {
	Auth      *auth.Service
	Trainings catalog.Repository
	Logger    *slog.Logger
	// Requests is optional.
	Requests RequestRecorder
	// Production selects gin release mode.
	Production bool
	// CORSOrigins are the cross-origin front ends allowed to call the
	// server with credentials. Empty disables CORS handling.
	CORSOrigins []string
}

// Server routes HTTP requests to the auth service.
type Server struct {
	auth      *auth.Service
	trainings catalog.Repository
	logger    *slog.Logger
	engine    *gin.Engine
}

// NewServer builds the router.
func NewServer(deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("auth service is required")
	}
	if deps.Trainings == nil {
		return nil, oops.Code("WEB_SERVER_INVALID").Errorf("training repository is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	var corsHandler gin.HandlerFunc
	if len(deps.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = deps.CORSOrigins
		corsCfg.AllowCredentials = true
		corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost}
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		if err := corsCfg.Validate(); err != nil {
			return nil, oops.Code("WEB_SERVER_INVALID").With("cors_origins", deps.CORSOrigins).Wrap(err)
		}
		corsHandler = cors.New(corsCfg)
	}

	s := &Server{
		auth:      deps.Auth,
		trainings: deps.Trainings,
		logger:    deps.Logger,
		engine:    gin.New(),
	}
	s.routes(deps.Requests, corsHandler)
	return s, nil
}

func (s *Server) routes(requests RequestRecorder, corsHandler gin.HandlerFunc) {
	e := s.engine
	e.Use(Tracing())
	if requests != nil {
		e.Use(Metrics(requests))
	}
	e.Use(RequestLogger(s.logger))
	e.Use(gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		s.logger.ErrorContext(c.Request.Context(), "panic in handler", "panic", recovered, "route", c.FullPath())
		internalError(c)
	}))
	if corsHandler != nil {
		e.Use(corsHandler)
	}

	sessions := s.auth.Sessions()
	optional := OptionalSession(sessions, s.logger)
	required := RequireSession(sessions, s.logger)

	e.GET("/", optional, s.handleHome)
	e.POST("/signup", s.handleSignup)
	e.POST("/login", s.handleLogin)
	e.POST("/logout", s.handleLogout)
	e.GET("/training", required, s.handleTraining)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve handles requests on l until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, l net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	s.logger.InfoContext(ctx, "web server started", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		return oops.Code("WEB_SERVE_FAILED").Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("WEB_SERVE_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "web server stopped")
	return nil
}
