package dsp

// Align returns a copy of x with exactly n samples: zero-padded on the right
// when x is shorter, truncated to the first n samples when longer.
func Align(x []float64, n int) []float64 {
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	copy(out, x)
	return out
}
