// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/holomush/trainhub/internal/auth"
)

// ErrResponseCommitted is returned when a cookie is set after the response body started.
var ErrResponseCommitted = errors.New("response already committed")

// cookieTransport adapts a gin request/response pair to auth.CookieTransport.
type cookieTransport struct {
	c *gin.Context
}

// Transport returns the cookie transport for c.
func Transport(c *gin.Context) auth.CookieTransport {
	return cookieTransport{c: c}
}

func (t cookieTransport) Get(name string) (string, bool) {
	value, err := t.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return value, true
}

func (t cookieTransport) Set(name, value string, attrs auth.CookieAttributes) error {
	if t.c.Writer.Written() {
		return ErrResponseCommitted
	}
	t.c.SetSameSite(attrs.SameSite)
	t.c.SetCookie(name, value, attrs.MaxAge, attrs.Path, attrs.Domain, attrs.Secure, attrs.HTTPOnly)
	return nil
}
