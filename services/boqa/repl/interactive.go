// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repl

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/openboqa/boqa/services/boqa/engine"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	itemStyle   = lipgloss.NewStyle().PaddingLeft(2)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// RunInteractive presents a type-ahead multi-select of every ontology
// term, runs Score against the chosen query, and renders a ranked
// results list. It returns nil when the selection is left empty or the
// user declines another query; cancelling a form (Esc/Ctrl+C) returns
// the form's error.
func RunInteractive(ctx context.Context, eng *engine.Engine, out io.Writer) error {
	options := termOptions(eng)

	for {
		var selected []int
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[int]().
					Title("Select query terms").
					Description("type to filter, space to toggle, enter to score").
					Options(options...).
					Filterable(true).
					Value(&selected),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
		if len(selected) == 0 {
			return nil
		}

		matches, err := eng.Score(ctx, selected)
		if err != nil {
			fmt.Fprintln(out, "score failed:", err)
			continue
		}
		renderResults(out, matches)

		var again bool
		if err := huh.NewConfirm().Title("Run another query?").Value(&again).Run(); err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

func termOptions(eng *engine.Engine) []huh.Option[int] {
	n := eng.NumberOfTerms("")
	options := make([]huh.Option[int], n)
	for i := 0; i < n; i++ {
		term := eng.TermAt(i)
		options[i] = huh.NewOption(fmt.Sprintf("%s (%s)", term.Name, term.ExternalID), i)
	}
	return options
}

func renderResults(out io.Writer, matches []engine.Match) {
	fmt.Fprintln(out, headerStyle.Render("Ranked items"))
	for _, m := range matches {
		fmt.Fprintf(out, "%s%s\n", itemStyle.Render(m.Item), scoreStyle.Render(fmt.Sprintf("  %.6f", m.Score)))
	}
	fmt.Fprintln(out)
}
