// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/trainhub/internal/auth"
	"github.com/holomush/trainhub/pkg/errutil"
)

// msgInternal is shown for any failure the client cannot act on.
const msgInternal = "An unexpected error occurred. Please try again later."

// credentialsForm is accepted as a urlencoded form or as JSON.
type credentialsForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func internalError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}

func (s *Server) handleHome(c *gin.Context) {
	mode := c.DefaultQuery("mode", "login")
	if mode != "signup" {
		mode = "login"
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": CurrentUser(c) != nil,
		"mode":          mode,
	})
}

func (s *Server) handleSignup(c *gin.Context) {
	s.handleCredentials(c, "signup", s.auth.Signup)
}

func (s *Server) handleLogin(c *gin.Context) {
	s.handleCredentials(c, "login", s.auth.Login)
}

type credentialsAction func(ctx context.Context, t auth.CookieTransport, email, password string) (*auth.Outcome, error)

// handleCredentials runs signup or login and maps the outcome to a response.
func (s *Server) handleCredentials(c *gin.Context, op string, action credentialsAction) {
	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password must be sent as a form or JSON"})
		return
	}

	outcome, err := action(c.Request.Context(), Transport(c), form.Email, form.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"errors": auth.FieldErrors{"email": auth.MsgInvalidCredentials}})
	case err != nil:
		errutil.LogErrorContext(c.Request.Context(), s.logger, op+" failed", err)
		internalError(c)
	case outcome.Errors.HasErrors():
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": outcome.Errors})
	default:
		c.Redirect(http.StatusSeeOther, outcome.RedirectTo)
	}
}

func (s *Server) handleLogout(c *gin.Context) {
	outcome, err := s.auth.Logout(c.Request.Context(), Transport(c))
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case err != nil:
		errutil.LogErrorContext(c.Request.Context(), s.logger, "logout failed", err)
		internalError(c)
	default:
		c.Redirect(http.StatusSeeOther, outcome.RedirectTo)
	}
}

func (s *Server) handleTraining(c *gin.Context) {
	trainings, err := s.trainings.List(c.Request.Context())
	if err != nil {
		errutil.LogErrorContext(c.Request.Context(), s.logger, "list trainings failed", err)
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":     CurrentUser(c).Email,
		"trainings": trainings,
	})
}
