package analysis

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-stemeval/dsp"
)

// DefaultFilterLength is the number of distortion filter taps allowed per
// source in the BSS decomposition.
const DefaultFilterLength = 512

// maxCond is the LU condition number above which the projection falls back
// to a minimum-norm SVD solve.
const maxCond = 1e12

var ErrShape = errors.New("invalid signal shape")

// BSSOptions configures BSSEval.
type BSSOptions struct {
	// FilterLength is the number of taps of the time-invariant distortion
	// filters. Zero selects DefaultFilterLength.
	FilterLength int
	// Permute searches all reference/estimate pairings and keeps the one with
	// the highest mean SIR. When false estimates are matched by index.
	Permute bool
}

// BSSResult holds per-reference criteria in dB. Permutation[j] is the index of
// the estimate scored against reference j.
type BSSResult struct {
	SDR         []float64
	SIR         []float64
	SAR         []float64
	Permutation []int
}

// BSSEval decomposes each estimate into a target part (the estimate projected
// on delayed copies of its own reference), an interference part (the extra
// explained by the other references) and an artifact residual, and returns
// SDR, SIR and SAR per reference. refs and ests are nsrc x n matrices.
func BSSEval(refs [][]float64, ests [][]float64, opts BSSOptions) (BSSResult, error) {
	nsrc, n, err := checkShape(refs, ests)
	if err != nil {
		return BSSResult{}, err
	}
	flen := opts.FilterLength
	if flen <= 0 {
		flen = DefaultFilterLength
	}

	p, err := newProjector(refs, flen)
	if err != nil {
		return BSSResult{}, err
	}

	// crit[jest][jtrue]
	sdr := newGrid(nsrc)
	sir := newGrid(nsrc)
	sar := newGrid(nsrc)
	padded := make([]float64, n+flen-1)
	for jest := 0; jest < nsrc; jest++ {
		copy(padded, ests[jest])
		estSpec, err := p.spectrum(ests[jest])
		if err != nil {
			return BSSResult{}, err
		}
		d, err := p.correlate(estSpec)
		if err != nil {
			return BSSResult{}, err
		}

		all, err := p.projectAll(d)
		if err != nil {
			return BSSResult{}, err
		}
		artifact := dsp.Energy(dsp.Sub(padded, all))
		allEnergy := dsp.Energy(all)

		for jtrue := 0; jtrue < nsrc; jtrue++ {
			if !opts.Permute && jtrue != jest {
				continue
			}
			target, err := p.projectOne(jtrue, d)
			if err != nil {
				return BSSResult{}, err
			}
			te := dsp.Energy(target)
			sdr[jest][jtrue] = dsp.RatioDB(te, dsp.Energy(dsp.Sub(padded, target)))
			sir[jest][jtrue] = dsp.RatioDB(te, dsp.Energy(dsp.Sub(all, target)))
			sar[jest][jtrue] = dsp.RatioDB(allEnergy, artifact)
		}
	}

	perm := identity(nsrc)
	if opts.Permute {
		perm = bestPermutation(sir)
	}
	res := BSSResult{
		SDR:         make([]float64, nsrc),
		SIR:         make([]float64, nsrc),
		SAR:         make([]float64, nsrc),
		Permutation: perm,
	}
	for j, jest := range perm {
		res.SDR[j] = sdr[jest][j]
		res.SIR[j] = sir[jest][j]
		res.SAR[j] = sar[jest][j]
	}
	return res, nil
}

func checkShape(refs [][]float64, ests [][]float64) (int, int, error) {
	if len(refs) == 0 {
		return 0, 0, fmt.Errorf("%w: no reference sources", ErrShape)
	}
	if len(refs) != len(ests) {
		return 0, 0, fmt.Errorf("%w: %d references vs %d estimates", ErrShape, len(refs), len(ests))
	}
	n := len(refs[0])
	if n == 0 {
		return 0, 0, fmt.Errorf("%w: empty signals", ErrShape)
	}
	for i := range refs {
		if len(refs[i]) != n || len(ests[i]) != n {
			return 0, 0, fmt.Errorf("%w: row %d has %d/%d samples, want %d", ErrShape, i, len(refs[i]), len(ests[i]), n)
		}
	}
	return len(refs), n, nil
}

// projector holds the FFT of every zero-padded reference and the Gram matrix
// of all their delayed copies, shared by every estimate.
type projector struct {
	nsrc, flen, n, nfft int

	fft     *algofft.PlanRealT[float64, complex128]
	refSpec [][]complex128

	full   solver
	single []solver

	buf  []float64
	cbuf []complex128
}

func newProjector(refs [][]float64, flen int) (*projector, error) {
	nsrc := len(refs)
	n := len(refs[0])
	nfft := max(nextPow2(n+flen-1), 2)
	plan, err := algofft.NewPlanReal64(nfft)
	if err != nil {
		return nil, fmt.Errorf("fft plan of size %d: %w", nfft, err)
	}
	p := &projector{
		nsrc:    nsrc,
		flen:    flen,
		n:       n,
		nfft:    nfft,
		fft:     plan,
		refSpec: make([][]complex128, nsrc),
		single:  make([]solver, nsrc),
		buf:     make([]float64, nfft),
		cbuf:    make([]complex128, nfft/2+1),
	}
	for i, r := range refs {
		if p.refSpec[i], err = p.spectrum(r); err != nil {
			return nil, err
		}
	}

	size := nsrc * flen
	gram := mat.NewDense(size, size, nil)
	for i := 0; i < nsrc; i++ {
		for j := i; j < nsrc; j++ {
			corr, err := p.xcorr(p.refSpec[i], p.refSpec[j])
			if err != nil {
				return nil, err
			}
			for a := 0; a < flen; a++ {
				for b := 0; b < flen; b++ {
					v := corr[p.lag(b-a)]
					gram.Set(i*flen+a, j*flen+b, v)
					gram.Set(j*flen+b, i*flen+a, v)
				}
			}
		}
	}

	if p.full, err = newSolver(gram); err != nil {
		return nil, err
	}
	for j := 0; j < nsrc; j++ {
		block := gram.Slice(j*flen, (j+1)*flen, j*flen, (j+1)*flen)
		if p.single[j], err = newSolver(block); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// spectrum returns the half spectrum of x zero-padded to nfft.
func (p *projector) spectrum(x []float64) ([]complex128, error) {
	copy(p.buf, x)
	clear(p.buf[len(x):])
	spec := make([]complex128, p.nfft/2+1)
	if err := p.fft.Forward(spec, p.buf); err != nil {
		return nil, fmt.Errorf("forward fft: %w", err)
	}
	return spec, nil
}

// inverse transforms a half spectrum of a real sequence into a new slice.
// DC and Nyquist are forced real; products of spectra leave rounding noise
// there that the transform rejects.
func (p *projector) inverse(spec []complex128) ([]float64, error) {
	spec[0] = complex(real(spec[0]), 0)
	spec[len(spec)-1] = complex(real(spec[len(spec)-1]), 0)
	out := make([]float64, p.nfft)
	if err := p.fft.Inverse(out, spec); err != nil {
		return nil, fmt.Errorf("inverse fft: %w", err)
	}
	return out, nil
}

// xcorr returns r[k] = sum_t a[t+k] b[t], indexed modulo nfft.
func (p *projector) xcorr(a []complex128, b []complex128) ([]float64, error) {
	for k := range p.cbuf {
		p.cbuf[k] = a[k] * complex(real(b[k]), -imag(b[k]))
	}
	return p.inverse(p.cbuf)
}

func (p *projector) lag(k int) int {
	return ((k % p.nfft) + p.nfft) % p.nfft
}

// correlate returns the inner products between the estimate and every
// delayed reference, laid out source-major like the Gram matrix.
func (p *projector) correlate(estSpec []complex128) (*mat.VecDense, error) {
	d := mat.NewVecDense(p.nsrc*p.flen, nil)
	for i := 0; i < p.nsrc; i++ {
		corr, err := p.xcorr(p.refSpec[i], estSpec)
		if err != nil {
			return nil, err
		}
		for a := 0; a < p.flen; a++ {
			d.SetVec(i*p.flen+a, corr[p.lag(-a)])
		}
	}
	return d, nil
}

func (p *projector) projectAll(d *mat.VecDense) ([]float64, error) {
	c := mat.NewVecDense(p.nsrc*p.flen, nil)
	if err := p.full.solve(c, d); err != nil {
		return nil, err
	}
	sources := make([]int, p.nsrc)
	for i := range sources {
		sources[i] = i
	}
	return p.filter(sources, c.RawVector().Data)
}

func (p *projector) projectOne(j int, d *mat.VecDense) ([]float64, error) {
	sub := d.SliceVec(j*p.flen, (j+1)*p.flen)
	c := mat.NewVecDense(p.flen, nil)
	if err := p.single[j].solve(c, sub); err != nil {
		return nil, err
	}
	return p.filter([]int{j}, c.RawVector().Data)
}

// filter sums the references in sources convolved with their filter taps,
// stored consecutively in coef. The result has n+flen-1 samples.
func (p *projector) filter(sources []int, coef []float64) ([]float64, error) {
	acc := make([]complex128, p.nfft/2+1)
	for k, i := range sources {
		taps := coef[k*p.flen : (k+1)*p.flen]
		copy(p.buf, taps)
		clear(p.buf[len(taps):])
		if err := p.fft.Forward(p.cbuf, p.buf); err != nil {
			return nil, fmt.Errorf("forward fft: %w", err)
		}
		for f := range acc {
			acc[f] += p.refSpec[i][f] * p.cbuf[f]
		}
	}
	seq, err := p.inverse(acc)
	if err != nil {
		return nil, err
	}
	return seq[:p.n+p.flen-1], nil
}

type solver interface {
	solve(dst *mat.VecDense, b mat.Vector) error
}

type luSolver struct {
	lu mat.LU
}

func (s *luSolver) solve(dst *mat.VecDense, b mat.Vector) error {
	return s.lu.SolveVecTo(dst, false, b)
}

// svdSolver returns the minimum-norm least squares solution. It covers the
// rank deficient systems produced by silent references.
type svdSolver struct {
	svd  mat.SVD
	rank int
}

func (s *svdSolver) solve(dst *mat.VecDense, b mat.Vector) error {
	if s.rank == 0 {
		dst.Zero()
		return nil
	}
	s.svd.SolveVecTo(dst, b, s.rank)
	return nil
}

func newSolver(a mat.Matrix) (solver, error) {
	s := &luSolver{}
	s.lu.Factorize(a)
	if c := s.lu.Cond(); !math.IsInf(c, 0) && !math.IsNaN(c) && c < maxCond {
		return s, nil
	}

	sv := &svdSolver{}
	if !sv.svd.Factorize(a, mat.SVDThin) {
		return nil, errors.New("bss: svd factorization failed")
	}
	r, _ := a.Dims()
	sv.rank = sv.svd.Rank(float64(r) * 2.220446049250313e-16)
	return sv, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func newGrid(n int) [][]float64 {
	g := make([][]float64, n)
	for i := range g {
		g[i] = make([]float64, n)
	}
	return g
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// bestPermutation returns perm maximising mean(sir[perm[j]][j]). Ties keep
// the lexicographically first permutation.
func bestPermutation(sir [][]float64) []int {
	n := len(sir)
	best := identity(n)
	bestScore := math.Inf(-1)
	permutations(n, func(perm []int) {
		var s float64
		for j, jest := range perm {
			s += sir[jest][j]
		}
		if s > bestScore {
			bestScore = s
			copy(best, perm)
		}
	})
	return best
}

// permutations calls fn with every permutation of 0..n-1 in lexicographic
// order. fn must not retain the slice.
func permutations(n int, fn func([]int)) {
	perm := make([]int, 0, n)
	used := make([]bool, n)
	var rec func()
	rec = func() {
		if len(perm) == n {
			fn(perm)
			return
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			perm = append(perm, i)
			rec()
			perm = perm[:len(perm)-1]
			used[i] = false
		}
	}
	rec()
}
