// Package analysis computes objective separation quality metrics between
// reference and estimated channel sets.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwbudde/algo-stemeval/stem"
)

const (
	StrategyBSS    = "bss"
	StrategyDirect = "direct"
)

// Score holds the metrics of one channel in dB. SAR is only produced by the
// BSS strategy.
type Score struct {
	SDR float64 `json:"sdr"`
	SIR float64 `json:"sir"`
	SAR float64 `json:"sar,omitempty"`
}

// Result is the outcome of comparing one estimate set against its reference.
type Result struct {
	Strategy string
	Scores   [stem.Count]Score
	// Permutation[ch] is the estimate channel scored against reference ch.
	// It is nil unless a permutation search ran.
	Permutation []stem.Channel
}

// Score returns the metrics of one channel.
func (r Result) Score(ch stem.Channel) Score {
	if !ch.Valid() {
		return Score{}
	}
	return r.Scores[ch]
}

func (r Result) MarshalJSON() ([]byte, error) {
	type out struct {
		Strategy    string            `json:"strategy"`
		Channels    map[string]Score  `json:"channels"`
		Permutation map[string]string `json:"permutation,omitempty"`
	}
	o := out{Strategy: r.Strategy, Channels: make(map[string]Score, stem.Count)}
	for _, ch := range stem.Channels() {
		o.Channels[ch.String()] = r.Scores[ch]
	}
	if r.Permutation != nil {
		o.Permutation = make(map[string]string, len(r.Permutation))
		for i, est := range r.Permutation {
			o.Permutation[stem.Channel(i).String()] = est.String()
		}
	}
	return json.Marshal(o)
}

// Strategy computes per-channel metrics for a reference/estimate pair.
type Strategy interface {
	Name() string
	Evaluate(reference stem.Set, estimate stem.Set) (Result, error)
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string, filterLength int, permute bool) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyBSS, "":
		return BSS{FilterLength: filterLength, Permute: permute}, nil
	case StrategyDirect:
		return Direct{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (use %s|%s)", name, StrategyBSS, StrategyDirect)
	}
}

// BSS scores channels with the full bss_eval decomposition.
type BSS struct {
	FilterLength int
	Permute      bool
}

func (BSS) Name() string { return StrategyBSS }

func (b BSS) Evaluate(reference stem.Set, estimate stem.Set) (Result, error) {
	if err := sameLength(reference, estimate); err != nil {
		return Result{}, err
	}
	res, err := BSSEval(reference.Matrix(), estimate.Matrix(), BSSOptions{
		FilterLength: b.FilterLength,
		Permute:      b.Permute,
	})
	if err != nil {
		return Result{}, err
	}
	out := Result{Strategy: StrategyBSS}
	for _, ch := range stem.Channels() {
		out.Scores[ch] = Score{SDR: res.SDR[ch], SIR: res.SIR[ch], SAR: res.SAR[ch]}
	}
	if b.Permute {
		out.Permutation = make([]stem.Channel, len(res.Permutation))
		for i, p := range res.Permutation {
			out.Permutation[i] = stem.Channel(p)
		}
	}
	return out, nil
}

// Direct scores channels with the direct energy ratios.
type Direct struct{}

func (Direct) Name() string { return StrategyDirect }

func (Direct) Evaluate(reference stem.Set, estimate stem.Set) (Result, error) {
	if err := sameLength(reference, estimate); err != nil {
		return Result{}, err
	}
	ests := estimate.Matrix()
	out := Result{Strategy: StrategyDirect}
	for _, ch := range stem.Channels() {
		out.Scores[ch] = Score{
			SDR: SDR(reference.Signal(ch), estimate.Signal(ch)),
			SIR: SIR(ests, int(ch)),
		}
	}
	return out, nil
}

func sameLength(reference stem.Set, estimate stem.Set) error {
	if reference.Len() != estimate.Len() {
		return fmt.Errorf("%w: reference has %d samples, estimate %d", ErrShape, reference.Len(), estimate.Len())
	}
	return nil
}
