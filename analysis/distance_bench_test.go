package analysis

import (
	"math"
	"testing"
)

func BenchmarkSpectralRMSEDB(b *testing.B) {
	const n = 44100
	a, c := benchmarkSignals(n)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = spectralRMSEDB(a, c)
	}
}

func BenchmarkCompare(b *testing.B) {
	const n = 44100 * 3
	ref, est := benchmarkSignals(n)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Compare(ref, est, 44100, 0)
	}
}

func BenchmarkBSSEval(b *testing.B) {
	const n = 44100
	refs := make([][]float64, 4)
	ests := make([][]float64, 4)
	for i := range refs {
		refs[i] = randomSignal(n, int64(i+1))
		ests[i] = mix(refs[i], 1, randomSignal(n, int64(i+10)), 0.1)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BSSEval(refs, ests, BSSOptions{FilterLength: 128}); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkSignals(n int) ([]float64, []float64) {
	a := make([]float64, n)
	c := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		a[i] = 0.7*math.Sin(2*math.Pi*57*t) + 0.25*math.Sin(2*math.Pi*311*t)
		c[i] = 0.68*math.Sin(2*math.Pi*57*t+0.05) + 0.27*math.Sin(2*math.Pi*320*t)
	}
	return a, c
}
