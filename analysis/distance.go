package analysis

import (
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-stemeval/dsp"
)

const (
	envelopeFrame = 1024
	envelopeHop   = 512
	spectrumSize  = 4096
	spectrumHop   = 2048
)

// Distance holds waveform-level diagnostics between a reference channel and
// its estimate. They complement SDR/SIR when a score looks suspicious, for
// example a codec delay shows up as a non-zero lag.
type Distance struct {
	SampleRate     int `json:"sample_rate"`
	Frames         int `json:"frames"`
	AnalyzedFrames int `json:"analyzed_frames"`
	LagSamples     int `json:"lag_samples"`

	TimeRMSE       float64 `json:"time_rmse"`
	EnvelopeRMSEDB float64 `json:"envelope_rmse_db"`
	SpectralRMSEDB float64 `json:"spectral_rmse_db"`
	LevelDiffDB    float64 `json:"level_diff_db"`
}

// Compare computes Distance over at most the first maxSeconds of both
// signals. maxSeconds <= 0 analyses everything.
func Compare(reference []float64, estimate []float64, sampleRate int, maxSeconds float64) Distance {
	d := Distance{SampleRate: sampleRate, Frames: min(len(reference), len(estimate))}
	n := d.Frames
	if sampleRate <= 0 || n == 0 {
		return d
	}
	if maxSeconds > 0 {
		n = min(n, int(maxSeconds*float64(sampleRate)))
	}
	ref := reference[:n]
	est := estimate[:n]
	d.AnalyzedFrames = n

	d.TimeRMSE = dsp.RMS(dsp.Sub(ref, est))
	d.LevelDiffDB = linToDB(dsp.RMS(est)) - linToDB(dsp.RMS(ref))

	maxLag := min(sampleRate/20, n-1)
	if maxLag > 0 {
		d.LagSamples = estimateLag(ref, est, maxLag)
	}

	refEnv := rmsEnvelope(ref, envelopeFrame, envelopeHop)
	estEnv := rmsEnvelope(est, envelopeFrame, envelopeHop)
	if envN := min(len(refEnv), len(estEnv)); envN > 0 {
		diff := make([]float64, envN)
		for i := 0; i < envN; i++ {
			diff[i] = linToDB(refEnv[i]) - linToDB(estEnv[i])
		}
		d.EnvelopeRMSEDB = dsp.RMS(diff)
	}

	d.SpectralRMSEDB = spectralRMSEDB(ref, est)
	return d
}

// estimateLag returns the shift in [-maxLag, maxLag] maximising the cross
// correlation; a positive lag means the estimate is delayed.
func estimateLag(ref []float64, est []float64, maxLag int) int {
	n := min(len(ref), len(est))
	if n == 0 || maxLag <= 0 {
		return 0
	}
	nfft := max(nextPow2(n+maxLag), 2)
	plan, err := algofft.NewPlanReal64(nfft)
	if err != nil {
		return 0
	}
	buf := make([]float64, nfft)
	rs := make([]complex128, nfft/2+1)
	es := make([]complex128, nfft/2+1)
	copy(buf, ref[:n])
	if plan.Forward(rs, buf) != nil {
		return 0
	}
	clear(buf)
	copy(buf, est[:n])
	if plan.Forward(es, buf) != nil {
		return 0
	}
	for k := range rs {
		rs[k] = es[k] * cmplx.Conj(rs[k])
	}
	rs[0] = complex(real(rs[0]), 0)
	rs[len(rs)-1] = complex(real(rs[len(rs)-1]), 0)
	corr := buf
	if plan.Inverse(corr, rs) != nil {
		return 0
	}

	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		v := corr[((lag%nfft)+nfft)%nfft]
		if v > best {
			best = v
			bestLag = lag
		}
	}
	return bestLag
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = dsp.RMS(x[start : start+frame])
	}
	return out
}

// spectralRMSEDB compares the Hann-windowed average magnitude spectra of a
// and b bin by bin in dB.
func spectralRMSEDB(a []float64, b []float64) float64 {
	n := min(len(a), len(b))
	if n < spectrumSize {
		return 0
	}
	plan, err := algofft.NewPlanReal64(spectrumSize)
	if err != nil {
		return 0
	}
	hann := make([]float64, spectrumSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(spectrumSize-1))
	}

	bins := spectrumSize / 2
	avgA := make([]float64, bins)
	avgB := make([]float64, bins)
	specA := make([]complex128, bins+1)
	specB := make([]complex128, bins+1)
	bufA := make([]float64, spectrumSize)
	bufB := make([]float64, spectrumSize)
	frames := 0
	for pos := 0; pos+spectrumSize <= n; pos += spectrumHop {
		for i := 0; i < spectrumSize; i++ {
			bufA[i] = a[pos+i] * hann[i]
			bufB[i] = b[pos+i] * hann[i]
		}
		plan.Forward(specA, bufA)
		plan.Forward(specB, bufB)
		for k := 1; k < bins; k++ {
			avgA[k] += cmplx.Abs(specA[k])
			avgB[k] += cmplx.Abs(specB[k])
		}
		frames++
	}
	if frames == 0 {
		return 0
	}

	scale := 1.0 / float64(frames)
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(avgA[k]*scale) - linToDB(avgB[k]*scale)
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}
