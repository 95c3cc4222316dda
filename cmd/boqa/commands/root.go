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
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openboqa/boqa/services/boqa/config"
	"github.com/openboqa/boqa/services/boqa/engine"
	"github.com/openboqa/boqa/services/boqa/ingest"
	"github.com/openboqa/boqa/services/boqa/inference"
	"github.com/openboqa/boqa/services/boqa/obsv"
)

var (
	corpusPath string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "boqa",
	Short: "BOQA ranks a catalogue of items against an ontology-term query",
	Long: `BOQA (Bayesian Ontology Query Algorithm) ranks items in a
catalogue by posterior probability against a query of ontology terms,
marginalizing over a noise-parameter grid and, optionally, frequency-
weighted hidden annotation configurations.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "path to a JSON ontology+association corpus (required)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML engine config file (defaults embedded)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(cacheDumpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return obsv.NewLogger(level, nil)
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default()
	}
	return config.LoadFile(configPath)
}

// buildEngine loads the corpus named by --corpus and the config named
// by --config (or embedded defaults), and runs engine.Setup.
func buildEngine(ctx context.Context, logger *slog.Logger) (*engine.Engine, error) {
	if corpusPath == "" {
		return nil, fmt.Errorf("--corpus is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	corpus, err := ingest.Load(corpusPath)
	if err != nil {
		return nil, err
	}

	return engine.Setup(ctx, corpus, corpus, engine.Options{
		Grid:                    inference.Grid{Alpha: cfg.AlphaGrid, Beta: cfg.BetaGrid},
		PropagateFalsePositives: cfg.PropagateFalsePositives,
		PropagateFalseNegatives: cfg.PropagateFalseNegatives,
		UseFrequencies:          cfg.UseFrequencies,
		MaxFrequencyTerms:       cfg.MaxFrequencyTerms,
		Workers:                 cfg.Workers,
		Logger:                  logger,
		CacheDir:                cfg.CacheDir,
		MaxCachedQuerySize:      cfg.MaxCachedQuerySize,
		ScoreDistributionSize:   cfg.ScoreDistributionSize,
	})
}
