// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/trainhub/internal/auth"
)

// Metrics holds the trainhub Prometheus collectors.
type Metrics struct {
	Signups               *prometheus.CounterVec
	Logins                *prometheus.CounterVec
	SessionsCreated       prometheus.Counter
	SessionValidations    *prometheus.CounterVec
	CookieRefreshFailures prometheus.Counter
	SweptSessions         prometheus.Counter
	HTTPRequests          *prometheus.CounterVec
}

var _ auth.Metrics = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainhub_signups_total",
			Help: "Signup attempts by result",
		}, []string{"result"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainhub_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainhub_sessions_created_total",
			Help: "Sessions started",
		}),
		SessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainhub_session_validations_total",
			Help: "Session validations by result",
		}, []string{"result"}),
		CookieRefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainhub_cookie_refresh_failures_total",
			Help: "Best-effort session cookie writes that failed",
		}),
		SweptSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainhub_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainhub_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		m.Signups,
		m.Logins,
		m.SessionsCreated,
		m.SessionValidations,
		m.CookieRefreshFailures,
		m.SweptSessions,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) SignupAttempt(result string)    { m.Signups.WithLabelValues(result).Inc() }
func (m *Metrics) LoginAttempt(result string)     { m.Logins.WithLabelValues(result).Inc() }
func (m *Metrics) SessionCreated()                { m.SessionsCreated.Inc() }
func (m *Metrics) SessionValidated(result string) { m.SessionValidations.WithLabelValues(result).Inc() }
func (m *Metrics) CookieRefreshFailed()           { m.CookieRefreshFailures.Inc() }
func (m *Metrics) SessionsSwept(n int64)          { m.SweptSessions.Add(float64(n)) }

// HTTPRequest counts a served request. route is the matched route pattern, not the raw path.
func (m *Metrics) HTTPRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
