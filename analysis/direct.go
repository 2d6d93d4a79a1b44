package analysis

import "github.com/cwbudde/algo-stemeval/dsp"

// SDR is the direct reconstruction ratio of est against ref in dB. Unlike
// BSSEval it penalises any gain or phase difference.
func SDR(ref []float64, est []float64) float64 {
	return dsp.RatioDB(dsp.Energy(ref), dsp.Energy(dsp.Sub(ref, est)))
}

// SIR compares the energy of ests[i] with the energy of the sum of every
// other estimate in dB.
func SIR(ests [][]float64, i int) float64 {
	if i < 0 || i >= len(ests) {
		return 0
	}
	return dsp.RatioDB(dsp.Energy(ests[i]), dsp.Energy(dsp.SumExcept(ests, i)))
}
