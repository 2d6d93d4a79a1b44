package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareIdenticalSignalsHasZeroDistance(t *testing.T) {
	sr := 44100
	x := makeDecaySine(sr, 440.0, 0.5, 0.3)
	d := Compare(x, x, sr, 0)
	assert.Zero(t, d.TimeRMSE)
	assert.LessOrEqual(t, d.EnvelopeRMSEDB, 1e-9)
	assert.LessOrEqual(t, d.SpectralRMSEDB, 1e-9)
	assert.Zero(t, d.LagSamples)
	assert.Equal(t, len(x), d.AnalyzedFrames)
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 44100
	a := makeDecaySine(sr, 261.63, 0.6, 0.8)
	b := makeDecaySine(sr, 330.0, 0.6, 0.25)
	d := Compare(a, b, sr, 0)
	assert.GreaterOrEqual(t, d.TimeRMSE, 0.05)
	assert.GreaterOrEqual(t, d.SpectralRMSEDB, 1.0)
}

func TestCompareLimitsAnalysisWindow(t *testing.T) {
	sr := 8000
	x := randomSignal(sr*3, 4)
	d := Compare(x, x, sr, 1)
	assert.Equal(t, sr, d.AnalyzedFrames)
	assert.Equal(t, len(x), d.Frames)
}

func TestCompareReportsGainAsLevelDiff(t *testing.T) {
	sr := 8000
	x := randomSignal(sr, 8)
	y := make([]float64, len(x))
	for i := range x {
		y[i] = 0.5 * x[i]
	}
	d := Compare(x, y, sr, 0)
	assert.InDelta(t, -6.0206, d.LevelDiffDB, 1e-3)
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 8192
		shift  = 237
		maxLag = 600
	)
	ref := randomSignal(n, 7)
	est := make([]float64, n)
	copy(est[shift:], ref)

	assert.Equal(t, shift, estimateLag(ref, est, maxLag))
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 8192
		shift  = -191
		maxLag = 600
	)
	ref := randomSignal(n, 11)
	est := make([]float64, n)
	copy(est, ref[-shift:])

	assert.Equal(t, shift, estimateLag(ref, est, maxLag))
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := int(float64(sr) * durationSec)
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		env := math.Exp(-t / decaySec)
		out[i] = env * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}
