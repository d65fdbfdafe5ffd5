// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"net/http"
	"time"

	"github.com/samber/oops"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "auth_session"

// CookiePolicy selects how long the client keeps the session cookie.
type CookiePolicy string

// Cookie policies.
const (
	// CookiePolicyBrowser omits Max-Age so the cookie is dropped when the browser closes.
	CookiePolicyBrowser CookiePolicy = "browser"
	// CookiePolicyPersistent sets Max-Age to the session TTL.
	CookiePolicyPersistent CookiePolicy = "persistent"
)

// Valid reports whether p is a known policy.
func (p CookiePolicy) Valid() bool {
	return p == CookiePolicyBrowser || p == CookiePolicyPersistent
}

// CookieAttributes are the attributes sent with a cookie.
// MaxAge 0 omits the attribute; a negative MaxAge deletes the cookie.
type CookieAttributes struct {
	Path     string
	Domain   string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// SessionCookie is the derived cookie carrying a session identifier.
type SessionCookie struct {
	Name       string
	Value      string
	Attributes CookieAttributes
}

// IsBlank reports whether the cookie clears the client's session.
func (c SessionCookie) IsBlank() bool {
	return c.Value == "" && c.Attributes.MaxAge < 0
}

// CookieTransport reads and writes cookies for a single request.
type CookieTransport interface {
	// Get returns the value of the named cookie, or false if the request has none.
	Get(name string) (string, bool)

	// Set emits a cookie on the response. It fails if the response is already committed.
	Set(name, value string, attrs CookieAttributes) error
}

// CookieConfig configures the session cookie.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	Policy   CookiePolicy
}

// DefaultCookieConfig returns a browser-session cookie config suitable for development.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     DefaultCookieName,
		SameSite: http.SameSiteLaxMode,
		Policy:   CookiePolicyBrowser,
	}
}

func (c CookieConfig) validate() error {
	if c.Name == "" {
		return oops.Code("COOKIE_CONFIG_INVALID").Errorf("cookie name is required")
	}
	if !c.Policy.Valid() {
		return oops.Code("COOKIE_CONFIG_INVALID").With("policy", c.Policy).Errorf("unknown cookie policy")
	}
	if c.SameSite == http.SameSiteNoneMode && !c.Secure {
		return oops.Code("COOKIE_CONFIG_INVALID").Errorf("SameSite=None requires a secure cookie")
	}
	return nil
}

func (c CookieConfig) baseAttributes() CookieAttributes {
	return CookieAttributes{
		Path:     "/",
		Domain:   c.Domain,
		HTTPOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// sessionCookie builds the cookie for session s as seen at now.
func (c CookieConfig) sessionCookie(s *Session, now time.Time) SessionCookie {
	attrs := c.baseAttributes()
	if c.Policy == CookiePolicyPersistent {
		attrs.MaxAge = int(s.ExpiresAt.Sub(now) / time.Second)
		if attrs.MaxAge <= 0 {
			attrs.MaxAge = -1
		}
	}
	return SessionCookie{Name: c.Name, Value: s.ID, Attributes: attrs}
}

// blankCookie builds the cookie that removes the session from the client.
func (c CookieConfig) blankCookie() SessionCookie {
	attrs := c.baseAttributes()
	attrs.MaxAge = -1
	return SessionCookie{Name: c.Name, Attributes: attrs}
}

// SetCookie writes cookie through t.
func SetCookie(t CookieTransport, cookie SessionCookie) error {
	if err := t.Set(cookie.Name, cookie.Value, cookie.Attributes); err != nil {
		return oops.Code("COOKIE_SET_FAILED").
			With("cookie", cookie.Name).
			With("blank", cookie.IsBlank()).
			Wrap(err)
	}
	return nil
}
