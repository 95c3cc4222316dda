// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package freqparse converts the small set of frequency-string
// notations used in annotation files into a probability in [0, 1].
// It is a pure function with no knowledge of the annotation file
// format itself (spec.md §6): "N%", "N.M%", "N/M", "N of M", and a
// fixed set of named buckets.
package freqparse

import (
	"strconv"
	"strings"
)

// namedBuckets maps the fixed vocabulary of qualitative frequency
// terms to their HPO-convention midpoint probabilities.
var namedBuckets = map[string]float64{
	"very rare":     0.02,
	"occasional":    0.1,
	"frequent":      0.5,
	"very frequent": 0.9,
	"obligate":      1.0,
}

// Parse converts s into a probability in [0, 1]. ok is false when s
// does not match any recognized notation; callers should then default
// to 1.0 and log a diagnostic, per spec.md §6.
func Parse(s string) (value float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1.0, false
	}
	lower := strings.ToLower(s)

	if v, found := namedBuckets[lower]; found {
		return v, true
	}

	if strings.HasSuffix(s, "%") {
		num := strings.TrimSuffix(s, "%")
		if f, err := strconv.ParseFloat(strings.TrimSpace(num), 64); err == nil {
			return clamp(f / 100.0), true
		}
		return 1.0, false
	}

	if strings.Contains(lower, " of ") {
		parts := strings.SplitN(lower, " of ", 2)
		if len(parts) == 2 {
			n, errN := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			m, errM := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errN == nil && errM == nil && m != 0 {
				return clamp(n / m), true
			}
		}
		return 1.0, false
	}

	if strings.Contains(s, "/") {
		parts := strings.SplitN(s, "/", 2)
		if len(parts) == 2 {
			n, errN := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			m, errM := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errN == nil && errM == nil && m != 0 {
				return clamp(n / m), true
			}
		}
		return 1.0, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return clamp(f), true
	}

	return 1.0, false
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
