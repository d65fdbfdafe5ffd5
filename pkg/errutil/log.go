// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil logs and inspects oops errors.
package errutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Process exit statuses.
const (
	ExitFailure = 1
	ExitConfig  = 2
)

// Code returns the oops code carried by err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// ExitCode maps a command error to a process exit status. Configuration
// errors exit with ExitConfig so scripts can tell them from runtime faults.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case strings.HasPrefix(Code(err), "CONFIG_"):
		return ExitConfig
	default:
		return ExitFailure
	}
}

// LogError logs err at error level. An oops error contributes its code and
// context as separate attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so trace IDs reach the record.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.ErrorContext(ctx, msg, "error", err)
		return
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if fields := oopsErr.Context(); len(fields) > 0 {
		attrs = append(attrs, "context", fields)
	}
	logger.ErrorContext(ctx, msg, attrs...)
}
