// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// Result labels reported through Metrics.
const (
	ResultSuccess            = "success"
	ResultInvalidInput       = "invalid_input"
	ResultConflict           = "conflict"
	ResultInvalidCredentials = "invalid_credentials"
	ResultError              = "error"

	ResultValid   = "valid"
	ResultAbsent  = "absent"
	ResultExpired = "expired"
)

// Metrics receives auth events. observability.Metrics implements it with Prometheus.
type Metrics interface {
	SignupAttempt(result string)
	LoginAttempt(result string)
	SessionCreated()
	SessionValidated(result string)
	CookieRefreshFailed()
	SessionsSwept(n int64)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) SignupAttempt(string)    {}
func (NopMetrics) LoginAttempt(string)     {}
func (NopMetrics) SessionCreated()         {}
func (NopMetrics) SessionValidated(string) {}
func (NopMetrics) CookieRefreshFailed()    {}
func (NopMetrics) SessionsSwept(int64)     {}

var _ Metrics = NopMetrics{}
