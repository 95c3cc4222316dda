// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var scoreTermIDs []int

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rank the catalogue against a one-shot query of sorted-space term indices",
	Args:  cobra.ArbitraryArgs,
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().IntSliceVar(&scoreTermIDs, "term", nil, "sorted-space term index, repeatable (--term 3 --term 7)")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	ids, err := parsePositionalTermIDs(args)
	if err != nil {
		return err
	}
	ids = append(ids, scoreTermIDs...)
	if len(ids) == 0 {
		return fmt.Errorf("no term IDs given: pass --term or positional sorted-space indices")
	}

	eng, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	matches, err := eng.Score(ctx, ids)
	if err != nil {
		return fmt.Errorf("scoring query: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tSCORE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%.6f\n", m.Item, m.Score)
	}
	return tw.Flush()
}

func parsePositionalTermIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid term index %q: %w", a, err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}
