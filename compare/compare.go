// Package compare evaluates labelled reference/estimate stage pairs of a song
// with an analysis strategy.
package compare

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/analysis"
	"github.com/cwbudde/algo-stemeval/internal/logging"
	"github.com/cwbudde/algo-stemeval/loader"
	"github.com/cwbudde/algo-stemeval/stem"
)

// DefaultMixtureStage holds the mixture used when a reference stage has none.
const DefaultMixtureStage = "originals"

// Stage directory names of the attack/defence experiment.
const (
	StageOriginals    = "originals"
	StageEstimated    = "estimated"
	StagePriorAttack  = "seperation_prior_attack"
	StageAfterAttack  = "seperation_after_attack"
	StageAfterDefence = "seperation_after_attack_and_defence"
)

// Run labels.
const (
	LabelEvaluation    = "evaluation"
	LabelSeparation    = "separation"
	LabelAttackEffect  = "attack effect"
	LabelDefenceEffect = "defence effect"
)

// ErrNoRuns is returned when Evaluate is called without runs.
var ErrNoRuns = errors.New("no runs")

// Run compares the Estimate stage against the Reference stage.
type Run struct {
	Label     string `json:"label"`
	Reference string `json:"reference"`
	Estimate  string `json:"estimate"`
}

// DefaultRuns returns the separation, attack and defence comparisons.
func DefaultRuns() []Run {
	return []Run{
		{Label: LabelSeparation, Reference: StageOriginals, Estimate: StagePriorAttack},
		{Label: LabelAttackEffect, Reference: StagePriorAttack, Estimate: StageAfterAttack},
		{Label: LabelDefenceEffect, Reference: StageOriginals, Estimate: StageAfterDefence},
	}
}

// EvaluationRun is the single comparison of separated stems against the
// originals.
func EvaluationRun() Run {
	return Run{Label: LabelEvaluation, Reference: StageOriginals, Estimate: StageEstimated}
}

// Outcome is the result of one run. Err is set instead of Result when the
// run could not be evaluated.
type Outcome struct {
	Run         Run
	Result      analysis.Result
	Diagnostics []analysis.Distance
	Err         error
}

// OK reports whether the run produced a result.
func (o Outcome) OK() bool { return o.Err == nil }

// Report collects the outcomes of one song in run order.
type Report struct {
	Song     string
	Outcomes []Outcome
}

// Outcome returns the outcome recorded under label.
func (r Report) Outcome(label string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Run.Label == label {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failed reports whether no run succeeded.
func (r Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.OK() {
			return false
		}
	}
	return true
}

// Evaluator runs comparisons for songs below SongsDir.
type Evaluator struct {
	SongsDir string
	Loader   *loader.Loader
	Strategy analysis.Strategy
	// MixtureStage supplies the reference length when the reference stage
	// has no mixture file.
	MixtureStage string
	// Diagnostics adds per-channel distance measures to each outcome.
	Diagnostics bool
	SampleRate  int
	Logger      *zap.Logger
}

func (e *Evaluator) logger() *zap.Logger {
	return logging.OrNop(e.Logger)
}

func (e *Evaluator) mixtureStage() string {
	if e.MixtureStage == "" {
		return DefaultMixtureStage
	}
	return e.MixtureStage
}

// StageDir returns the directory of stage for song.
func (e *Evaluator) StageDir(song string, stage string) string {
	return filepath.Join(e.SongsDir, song, stage)
}

// Evaluate runs every comparison for song. A failing run is logged and
// recorded in its outcome; the remaining runs still execute.
func (e *Evaluator) Evaluate(song string, runs []Run) (Report, error) {
	if len(runs) == 0 {
		return Report{Song: song}, ErrNoRuns
	}
	if e.Loader == nil || e.Strategy == nil {
		return Report{Song: song}, fmt.Errorf("evaluator needs a loader and a strategy")
	}

	log := e.logger().With(zap.String("song", song))
	prepared := make(map[string]error)
	report := Report{Song: song, Outcomes: make([]Outcome, 0, len(runs))}
	for _, run := range runs {
		out := e.evaluateRun(song, run, prepared)
		if out.Err != nil {
			log.Warn("run failed", zap.String("run", run.Label), zap.Error(out.Err))
		} else {
			log.Info("run evaluated",
				zap.String("run", run.Label),
				zap.String("strategy", out.Result.Strategy),
			)
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	return report, nil
}

func (e *Evaluator) evaluateRun(song string, run Run, prepared map[string]error) Outcome {
	out := Outcome{Run: run}
	refDir := e.StageDir(song, run.Reference)
	estDir := e.StageDir(song, run.Estimate)

	for _, dir := range []string{refDir, estDir} {
		err, seen := prepared[dir]
		if !seen {
			_, err = e.Loader.Prepare(dir)
			prepared[dir] = err
		}
		if err != nil {
			out.Err = fmt.Errorf("prepare %s: %w", dir, err)
			return out
		}
	}

	if err := e.Loader.Check(refDir); err != nil {
		out.Err = fmt.Errorf("reference: %w", err)
		return out
	}
	if err := e.Loader.Check(estDir); err != nil {
		out.Err = fmt.Errorf("estimate: %w", err)
		return out
	}

	refLen, err := e.referenceLength(song, refDir)
	if err != nil {
		out.Err = err
		return out
	}
	reference, err := e.Loader.Load(refDir, refLen)
	if err != nil {
		out.Err = fmt.Errorf("load reference: %w", err)
		return out
	}
	estimate, err := e.Loader.Load(estDir, refLen)
	if err != nil {
		out.Err = fmt.Errorf("load estimate: %w", err)
		return out
	}

	res, err := e.Strategy.Evaluate(reference, estimate)
	if err != nil {
		out.Err = fmt.Errorf("evaluate: %w", err)
		return out
	}
	out.Result = res

	if e.Diagnostics {
		out.Diagnostics = make([]analysis.Distance, stem.Count)
		for _, ch := range stem.Channels() {
			out.Diagnostics[ch] = analysis.Compare(reference.Signal(ch), estimate.Signal(ch), e.SampleRate, 0)
		}
	}
	return out
}

// referenceLength uses the mixture of the reference stage, falling back to
// the mixture stage of the song.
func (e *Evaluator) referenceLength(song string, refDir string) (int, error) {
	dir := refDir
	if !e.Loader.HasMixture(dir) {
		fallback := e.StageDir(song, e.mixtureStage())
		if fallback != refDir {
			if _, err := e.Loader.Prepare(fallback); err != nil && !errors.Is(err, loader.ErrMissingDirectory) {
				return 0, fmt.Errorf("prepare %s: %w", fallback, err)
			}
		}
		dir = fallback
	}
	n, err := e.Loader.ReferenceLength(dir)
	if err != nil {
		return 0, fmt.Errorf("reference length: %w", err)
	}
	return n, nil
}

// Batch evaluates songs on at most workers goroutines. Reports are returned
// in the order of songs. onDone, when set, is called once per finished song
// from the worker goroutine.
func (e *Evaluator) Batch(songs []string, runs []Run, workers int, onDone func(Report)) []Report {
	reports := make([]Report, len(songs))
	if len(songs) == 0 {
		return reports
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(max(workers, 1), len(songs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rep, err := e.Evaluate(songs[idx], runs)
				if err != nil {
					e.logger().Error("song failed", zap.String("song", songs[idx]), zap.Error(err))
				}
				reports[idx] = rep
				if onDone != nil {
					onDone(rep)
				}
			}
		}()
	}
	for i := range songs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return reports
}
