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
	"text/tabwriter"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/openboqa/boqa/services/boqa/cache"
)

var cacheDumpDir string

var cacheDumpCmd = &cobra.Command{
	Use:   "cache-dump",
	Short: "List the entries persisted in a BadgerDB score/query cache",
	RunE:  runCacheDump,
}

func init() {
	cacheDumpCmd.Flags().StringVar(&cacheDumpDir, "cache-dir", "", "BadgerDB directory to inspect (required)")
}

func runCacheDump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cacheDumpDir == "" {
		return fmt.Errorf("--cache-dir is required")
	}

	db, err := badger.Open(badger.DefaultOptions(cacheDumpDir).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("opening cache at %s: %w", cacheDumpDir, err)
	}
	defer db.Close()

	entries, err := cache.DumpAll(ctx, db)
	if err != nil {
		return fmt.Errorf("dumping cache: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tBYTES\tSIZE_ON_DISK")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", e.Key, len(e.Value), e.SizeOnDisk)
	}
	return tw.Flush()
}
