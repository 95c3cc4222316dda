// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package repl is BOQA's terminal demo surface: an interactive,
// Bubble Tea/huh-driven query builder when stdin/stdout are a real
// terminal, falling back to a plain line-oriented REPL when either is
// piped (spec.md §6's "REPL-style example" and its documented exit
// codes).
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/openboqa/boqa/services/boqa/engine"
	"github.com/openboqa/boqa/services/boqa/query"
)

// Exit codes, matching spec.md §6's documented REPL contract.
const (
	ExitOK           = 0
	ExitInputError   = 2
	ExitInternalFail = 3
)

// Run dispatches to the interactive form-driven builder when both in
// and out are attached to a terminal, and to the plain-line REPL
// otherwise. It returns the process exit code to use.
func Run(ctx context.Context, eng *engine.Engine, in, out *os.File) int {
	if isatty.IsTerminal(in.Fd()) && isatty.IsTerminal(out.Fd()) {
		if err := RunInteractive(ctx, eng, out); err != nil {
			fmt.Fprintln(out, "error:", err)
			return ExitInternalFail
		}
		return ExitOK
	}
	return RunLineREPL(ctx, eng, in, out)
}

// RunLineREPL reads whitespace/comma-separated sorted-space term
// indices, one query per line, and prints the ranked result as
// "item\tscore" lines terminated by a blank line. A line of "quit" or
// EOF ends the loop.
func RunLineREPL(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) int {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return ExitOK
		}

		ids, err := parseTermIDs(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			return ExitInputError
		}

		matches, err := eng.Score(ctx, ids)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			if errors.Is(err, query.ErrEmptyQuery) || errors.Is(err, query.ErrUnknownTerm) {
				return ExitInputError
			}
			return ExitInternalFail
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%s\t%.6f\n", m.Item, m.Score)
		}
		fmt.Fprintln(out)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(out, "error:", err)
		return ExitInternalFail
	}
	return ExitOK
}

func parseTermIDs(line string) ([]int, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid term index %q: %w", f, err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}
