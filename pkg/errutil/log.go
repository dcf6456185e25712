// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, context, and stacktrace.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, errorAttrs(err)...)
}

// LogDenial logs a refused operation at info level with the same structured
// extraction as LogError. Denials (policy rejections, refused joins) are
// normal operation, not faults, and must not raise the error count.
func LogDenial(logger *slog.Logger, msg string, err error) {
	logger.Info(msg, errorAttrs(err)...)
}

// errorAttrs extracts the structured attributes for an error. Oops errors
// contribute their code and context; anything else is logged as a string.
func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{
		"error", oopsErr.Error(),
	}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
