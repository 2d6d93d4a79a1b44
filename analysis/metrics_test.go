package analysis

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stemeval/dsp"
	"github.com/cwbudde/algo-stemeval/stem"
)

const testFilterLength = 32

func mix(a []float64, ga float64, b []float64, gb float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = ga*a[i] + gb*b[i]
	}
	return out
}

func scaled(x []float64, g float64) []float64 {
	return mix(x, g, x, 0)
}

func randomSources(n int, seed int64) [][]float64 {
	out := make([][]float64, stem.Count)
	for i := range out {
		out[i] = randomSignal(n, seed+int64(i))
	}
	return out
}

func mustSet(t *testing.T, rows [][]float64) stem.Set {
	t.Helper()
	m := make(map[stem.Channel][]float64, len(rows))
	for i, r := range rows {
		m[stem.Channel(i)] = r
	}
	s, err := stem.NewSet(m)
	require.NoError(t, err)
	return s
}

func TestDirectSDRIdenticalIsSaturated(t *testing.T) {
	x := randomSignal(1024, 1)
	x = scaled(x, 1/math.Sqrt(dsp.Energy(x)))
	got := SDR(x, x)
	assert.True(t, dsp.IsFinite(got))
	assert.GreaterOrEqual(t, got, 100.0)
}

func TestDirectSIRSingleActiveChannel(t *testing.T) {
	ests := [][]float64{
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
	active := SIR(ests, 0)
	assert.Greater(t, active, 100.0)
	for i := 1; i < 4; i++ {
		silent := SIR(ests, i)
		assert.True(t, dsp.IsFinite(silent))
		assert.Less(t, silent, -100.0)
	}
}

func TestDirectSIRExcludesSelfByIndex(t *testing.T) {
	// Two identical channels must still interfere with each other.
	x := randomSignal(256, 3)
	ests := [][]float64{x, x, make([]float64, 256), make([]float64, 256)}
	assert.InDelta(t, 0, SIR(ests, 0), 1e-9)
	assert.InDelta(t, 0, SIR(ests, 1), 1e-9)
	assert.Equal(t, 0.0, SIR(ests, 7))
}

func TestDirectEndToEndScenario(t *testing.T) {
	ref := mustSet(t, [][]float64{
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
	res, err := Direct{}.Evaluate(ref, ref)
	require.NoError(t, err)
	assert.Equal(t, StrategyDirect, res.Strategy)

	vocals := res.Score(stem.Vocals)
	assert.InDelta(t, 10*math.Log10((4+1e-10)/1e-10), vocals.SDR, 1e-9)
	assert.Greater(t, vocals.SIR, 100.0)

	drums := res.Score(stem.Drums)
	assert.Equal(t, 0.0, drums.SDR)
	assert.Equal(t, 10*math.Log10((0+1e-10)/(0+1e-10)), drums.SDR)
}

func TestBSSIdenticalEstimatesSaturate(t *testing.T) {
	refs := randomSources(2048, 10)
	res, err := BSSEval(refs, refs, BSSOptions{FilterLength: testFilterLength})
	require.NoError(t, err)
	require.Len(t, res.SDR, stem.Count)
	for j := range refs {
		assert.Greater(t, res.SDR[j], 100.0, "sdr %d", j)
		assert.Greater(t, res.SIR[j], 100.0, "sir %d", j)
		assert.Equal(t, j, res.Permutation[j])
	}
}

func TestBSSSIRMeasuresLeakage(t *testing.T) {
	refs := randomSources(4096, 20)
	ests := make([][]float64, len(refs))
	for j := range refs {
		ests[j] = append([]float64(nil), refs[j]...)
	}
	// Half-amplitude leakage of drums into vocals: about 6 dB SIR.
	ests[0] = mix(refs[0], 1, refs[1], 0.5)

	res, err := BSSEval(refs, ests, BSSOptions{FilterLength: testFilterLength})
	require.NoError(t, err)
	want := 10 * math.Log10(dsp.Energy(refs[0])/(0.25*dsp.Energy(refs[1])))
	assert.InDelta(t, want, res.SIR[0], 0.5)
	assert.Greater(t, res.SAR[0], 60.0)
	assert.Greater(t, res.SIR[2], 100.0)
}

func TestBSSInvariantToGainDirectIsNot(t *testing.T) {
	refs := randomSources(4096, 30)
	ests := make([][]float64, len(refs))
	for j := range refs {
		ests[j] = mix(refs[j], 1, randomSignal(len(refs[j]), int64(100+j)), 0.1)
	}
	louder := make([][]float64, len(ests))
	for j := range ests {
		louder[j] = scaled(ests[j], 2)
	}

	base, err := BSSEval(refs, ests, BSSOptions{FilterLength: testFilterLength})
	require.NoError(t, err)
	gained, err := BSSEval(refs, louder, BSSOptions{FilterLength: testFilterLength})
	require.NoError(t, err)

	for j := range refs {
		assert.InDelta(t, base.SDR[j], gained.SDR[j], 1e-6, "bss sdr %d", j)
		assert.InDelta(t, base.SIR[j], gained.SIR[j], 1e-6, "bss sir %d", j)

		directBase := SDR(refs[j], ests[j])
		directGained := SDR(refs[j], louder[j])
		assert.Greater(t, directBase-directGained, 10.0, "direct sdr %d", j)
	}
}

func TestBSSPermutationRecoversShuffle(t *testing.T) {
	refs := randomSources(2048, 40)
	// ests[k] ~ refs[shuffle[k]]
	shuffle := []int{2, 0, 3, 1}
	ests := make([][]float64, len(refs))
	for k, j := range shuffle {
		ests[k] = mix(refs[j], 1, randomSignal(2048, int64(200+k)), 0.05)
	}

	res, err := BSSEval(refs, ests, BSSOptions{FilterLength: testFilterLength, Permute: true})
	require.NoError(t, err)
	for k, j := range shuffle {
		assert.Equal(t, k, res.Permutation[j], "reference %d", j)
		assert.Greater(t, res.SDR[j], 15.0)
	}

	aligned, err := BSSEval(refs, ests, BSSOptions{FilterLength: testFilterLength})
	require.NoError(t, err)
	for j := range refs {
		assert.Less(t, aligned.SDR[j], 0.0, "index-aligned sdr %d", j)
	}
}

func TestBSSSilentReferenceStaysFinite(t *testing.T) {
	refs := randomSources(1024, 50)
	refs[1] = make([]float64, 1024)
	ests := make([][]float64, len(refs))
	for j := range refs {
		ests[j] = append([]float64(nil), refs[j]...)
	}
	ests[1] = make([]float64, 1024)

	res, err := BSSEval(refs, ests, BSSOptions{FilterLength: 16})
	require.NoError(t, err)
	for j := range refs {
		assert.True(t, dsp.IsFinite(res.SDR[j]), "sdr %d", j)
		assert.True(t, dsp.IsFinite(res.SIR[j]), "sir %d", j)
		assert.True(t, dsp.IsFinite(res.SAR[j]), "sar %d", j)
	}
	assert.Equal(t, 0.0, res.SDR[1])
	assert.Greater(t, res.SDR[0], 100.0)
}

func TestBSSRejectsBadShapes(t *testing.T) {
	_, err := BSSEval(nil, nil, BSSOptions{})
	assert.True(t, errors.Is(err, ErrShape))

	_, err = BSSEval([][]float64{{1, 2}}, [][]float64{{1, 2}, {3, 4}}, BSSOptions{})
	assert.True(t, errors.Is(err, ErrShape))

	_, err = BSSEval([][]float64{{1, 2}}, [][]float64{{1}}, BSSOptions{})
	assert.True(t, errors.Is(err, ErrShape))
}

func TestStrategiesDisagreeOnGain(t *testing.T) {
	refs := randomSources(2048, 60)
	ests := make([][]float64, len(refs))
	for j := range refs {
		ests[j] = scaled(mix(refs[j], 1, randomSignal(2048, int64(300+j)), 0.05), 3)
	}
	ref := mustSet(t, refs)
	est := mustSet(t, ests)

	bss, err := NewStrategy("bss", testFilterLength, false)
	require.NoError(t, err)
	direct, err := NewStrategy("DIRECT", 0, false)
	require.NoError(t, err)

	rb, err := bss.Evaluate(ref, est)
	require.NoError(t, err)
	rd, err := direct.Evaluate(ref, est)
	require.NoError(t, err)

	for _, ch := range stem.Channels() {
		assert.Greater(t, rb.Score(ch).SDR, 20.0, ch.String())
		assert.Less(t, rd.Score(ch).SDR, 0.0, ch.String())
	}
	assert.Nil(t, rb.Permutation)
}

func TestNewStrategyUnknown(t *testing.T) {
	_, err := NewStrategy("snr", 0, false)
	assert.Error(t, err)
}

func TestStrategyRejectsLengthMismatch(t *testing.T) {
	a := mustSet(t, [][]float64{{1}, {1}, {1}, {1}})
	b := mustSet(t, [][]float64{{1, 2}, {1, 2}, {1, 2}, {1, 2}})
	_, err := Direct{}.Evaluate(a, b)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = BSS{}.Evaluate(a, b)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestResultJSONUsesChannelNames(t *testing.T) {
	r := Result{Strategy: StrategyBSS, Permutation: []stem.Channel{stem.Drums, stem.Vocals, stem.Bass, stem.Other}}
	r.Scores[stem.Vocals] = Score{SDR: 1.5, SIR: 2}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded struct {
		Strategy    string            `json:"strategy"`
		Channels    map[string]Score  `json:"channels"`
		Permutation map[string]string `json:"permutation"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "bss", decoded.Strategy)
	assert.Equal(t, 1.5, decoded.Channels["vocals"].SDR)
	assert.Equal(t, "drums", decoded.Permutation["vocals"])
	assert.Len(t, decoded.Channels, stem.Count)
}

func TestProjectorMatchesDirectCorrelationAndConvolution(t *testing.T) {
	const (
		n    = 50
		flen = 4
	)
	refs := [][]float64{randomSignal(n, 21), randomSignal(n, 22)}
	p, err := newProjector(refs, flen)
	require.NoError(t, err)

	corr, err := p.xcorr(p.refSpec[0], p.refSpec[1])
	require.NoError(t, err)
	for k := -(flen - 1); k < flen; k++ {
		var want float64
		for tt := 0; tt < n; tt++ {
			if tt+k >= 0 && tt+k < n {
				want += refs[0][tt+k] * refs[1][tt]
			}
		}
		assert.InDelta(t, want, corr[p.lag(k)], 1e-9, "lag %d", k)
	}

	taps := []float64{1, -0.5, 0.25, 0}
	got, err := p.filter([]int{1}, taps)
	require.NoError(t, err)
	require.Len(t, got, n+flen-1)
	for tt := range got {
		var want float64
		for a, c := range taps {
			if tt-a >= 0 && tt-a < n {
				want += c * refs[1][tt-a]
			}
		}
		assert.InDelta(t, want, got[tt], 1e-9, "sample %d", tt)
	}
}
