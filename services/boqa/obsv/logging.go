// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package obsv

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the engine's structured logger. Every other package
// takes a *slog.Logger through its constructor or options, falling
// back to slog.Default() (engine: Discard) only when given nil, so
// tests can inject a discard logger and cmd/boqa can wire a single
// shared instance.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Discard is a logger that drops everything, for tests and for
// callers that pass nil and don't care about engine diagnostics.
var Discard = slog.New(slog.NewTextHandler(io.Discard, nil))
