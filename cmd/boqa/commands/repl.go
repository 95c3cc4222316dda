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
	"os"

	"github.com/spf13/cobra"

	"github.com/openboqa/boqa/services/boqa/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run the interactive term-selection REPL",
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	eng, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	code := repl.Run(ctx, eng, os.Stdin, os.Stdout)
	if code != repl.ExitOK {
		os.Exit(code)
	}
	return nil
}
