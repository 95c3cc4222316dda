// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the BOQA engine's tunables — the α/β noise
// grids, worker count, frequency-weighting cap, and cache paths —
// from YAML, falling back to embedded defaults, with optional
// fsnotify-driven hot reload of the config file itself (never of the
// ontology/annotation corpus, which requires a fresh engine setup).
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfigYAML []byte

// Config is the engine's full runtime configuration.
type Config struct {
	// AlphaGrid and BetaGrid are the noise-parameter search spaces
	// marginalized over by C6 (spec.md §4.6).
	AlphaGrid []float64 `yaml:"alpha_grid"`
	BetaGrid  []float64 `yaml:"beta_grid"`

	// UseFrequencies selects the frequency-weighted hidden-configuration model.
	UseFrequencies bool `yaml:"use_frequencies"`

	// PropagateFalsePositives / PropagateFalseNegatives select
	// getNodeCase's inheritance rules (spec.md §4.5).
	PropagateFalsePositives bool `yaml:"propagate_false_positives"`
	PropagateFalseNegatives bool `yaml:"propagate_false_negatives"`

	// MaxFrequencyTerms bounds kᵢ, the number of independently
	// configurable low-frequency terms per item.
	MaxFrequencyTerms int `yaml:"max_frequency_terms"`

	// Workers bounds the inference worker pool; 0 selects runtime.NumCPU().
	Workers int `yaml:"workers"`

	// CacheDir is the BadgerDB directory for the persisted
	// query-result cache. Empty disables persistence.
	CacheDir string `yaml:"cache_dir"`

	// MaxCachedQuerySize bounds how large a query is still eligible
	// for the result cache (part of the cache fingerprint, spec.md §6).
	MaxCachedQuerySize int `yaml:"max_cached_query_size"`

	// ScoreDistributionSize is folded into the cache fingerprint;
	// nothing else reads it.
	ScoreDistributionSize int `yaml:"score_distribution_size"`
}

// Default returns the embedded default configuration.
func Default() (Config, error) {
	return Load(defaultConfigYAML)
}

// Load parses YAML bytes into a Config, applying the embedded
// defaults for any field YAML leaves unset.
func Load(data []byte) (Config, error) {
	cfg := Config{
		AlphaGrid:               []float64{0.0, 0.01, 0.05, 0.1},
		BetaGrid:                []float64{0.0, 0.01, 0.05, 0.1},
		UseFrequencies:          true,
		PropagateFalseNegatives: true,
		MaxFrequencyTerms:       8,
		Workers:                 0,
		MaxCachedQuerySize:      8,
		ScoreDistributionSize:   1000,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing YAML: %w", err)
	}
	if len(cfg.AlphaGrid) == 0 || len(cfg.BetaGrid) == 0 {
		return Config{}, fmt.Errorf("config: alpha_grid and beta_grid must be non-empty")
	}
	for _, a := range cfg.AlphaGrid {
		if a < 0 || a > 1 {
			return Config{}, fmt.Errorf("config: alpha_grid value %v outside [0,1]", a)
		}
	}
	for _, b := range cfg.BetaGrid {
		if b < 0 || b > 1 {
			return Config{}, fmt.Errorf("config: beta_grid value %v outside [0,1]", b)
		}
	}
	return cfg, nil
}

// LoadFile reads and parses a YAML config file from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Load(data)
}

// Watcher hot-reloads a Config from disk whenever its source file
// changes. It never touches the loaded ontology/annotation corpus —
// only the tunables in Config — matching spec.md §9's "global state
// becomes explicit configuration" note generalized to live reload.
//
// Thread Safety: Current is safe for concurrent reads while the
// watcher goroutine is running.
type Watcher struct {
	mu       sync.RWMutex
	current  Config
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onError  func(error)
	onReload func(Config)
}

// WatchFile starts watching path for changes, loading it immediately.
func WatchFile(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	w := &Watcher{current: cfg, path: path, watcher: fw, logger: logger}
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnError registers a callback invoked whenever a reload fails; the
// previously loaded Config remains in effect.
func (w *Watcher) OnError(fn func(error)) { w.onError = fn }

// OnReload registers a callback invoked with the newly loaded Config
// after each successful reload, letting a caller apply the tuning
// knobs it cares about to a running component (e.g. an engine.Engine's
// worker count or cache-eligibility cutoff) without rebuilding it.
func (w *Watcher) OnReload(fn func(Config)) { w.onReload = fn }

// Close stops the watcher goroutine.
func (w *Watcher) Close() error { return w.watcher.Close() }

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadFile(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
				if w.onError != nil {
					w.onError(err)
				}
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
			w.logger.Info("config reloaded", "path", w.path)
			if w.onReload != nil {
				w.onReload(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
