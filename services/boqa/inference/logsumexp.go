// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inference

import "math"

// negInf is the additive identity of the log-sum-exp accumulator.
var negInf = math.Inf(-1)

// logAdd folds b into the running log-space sum a, using the
// numerically stable form from spec.md §4.6:
// logAdd(a,b) = max(a,b) + log(1 + exp(-|a-b|)), with logAdd(-inf, x) = x.
func logAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	hi, lo := a, b
	if b > a {
		hi, lo = b, a
	}
	return hi + math.Log1p(math.Exp(lo-hi))
}

// accumulator folds a stream of log-space terms via repeated logAdd.
type accumulator struct {
	sum float64
}

func newAccumulator() *accumulator { return &accumulator{sum: negInf} }

func (a *accumulator) add(x float64) { a.sum = logAdd(a.sum, x) }

func (a *accumulator) value() float64 { return a.sum }
