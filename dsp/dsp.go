// Package dsp holds the sample-level helpers shared by the loaders and the
// metric engine: length alignment, energies and gain matching.
package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Eps guards energy ratios against silent signals.
const Eps = 1e-10

// Energy returns the sum of squared samples.
func Energy(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Dot(x, x)
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(Energy(x) / float64(len(x)))
}

// Sub returns a-b over the shorter of the two lengths.
func Sub(a []float64, b []float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	floats.SubTo(out, a[:n], b[:n])
	return out
}

// SumExcept adds all rows except rows[skip]. Rows shorter than the first
// row contribute only their available samples.
func SumExcept(rows [][]float64, skip int) []float64 {
	if len(rows) == 0 {
		return nil
	}
	n := len(rows[0])
	out := make([]float64, n)
	for i, r := range rows {
		if i == skip {
			continue
		}
		m := min(len(r), n)
		floats.Add(out[:m], r[:m])
	}
	return out
}

// RatioDB returns 10*log10((num+Eps)/(den+Eps)).
func RatioDB(num float64, den float64) float64 {
	return 10 * math.Log10((num+Eps)/(den+Eps))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
