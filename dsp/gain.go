package dsp

import (
	"github.com/cwbudde/algo-approx"
)

// DBToGain converts a level change in dB to a linear amplitude factor.
func DBToGain(db float64) float64 {
	const ln10Over20 = 0.11512925464970228420
	if db == 0 {
		return 1
	}
	return float64(approx.FastExp(float32(db) * ln10Over20))
}

// MatchRMS scales recorded so that its RMS level matches reference, then
// applies an extra trim in dB. It returns the scaled copy and the total
// linear gain. A silent recording is returned unscaled apart from the trim.
func MatchRMS(reference []float64, recorded []float64, trimDB float64) ([]float64, float64) {
	gain := 1.0
	if r := RMS(recorded); r > 1e-12 {
		gain = RMS(reference) / r
	}
	gain *= DBToGain(trimDB)

	out := make([]float64, len(recorded))
	for i, v := range recorded {
		out[i] = v * gain
	}
	return out, gain
}
