package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/analysis"
	"github.com/cwbudde/algo-stemeval/codec"
	"github.com/cwbudde/algo-stemeval/compare"
	"github.com/cwbudde/algo-stemeval/loader"
	"github.com/cwbudde/algo-stemeval/plan"
)

// planFlags are the evaluation flags shared by the scoring commands. Set
// flags override values from the plan file.
type planFlags struct {
	// base returns the plan the file and flags are applied to. Nil means
	// plan.NewDefault.
	base func() *plan.Plan

	path         string
	songsDir     string
	format       string
	sampleRate   int
	strategy     string
	filterLength int
	permute      bool
	mixtureStage string
	ffmpeg       string
	bitrate      string
	output       string
}

func (f *planFlags) defaults() *plan.Plan {
	if f.base != nil {
		return f.base()
	}
	return plan.NewDefault()
}

func (f *planFlags) register(cmd *cobra.Command) {
	def := f.defaults()
	fs := cmd.Flags()
	fs.StringVar(&f.path, "plan", "", "Evaluation plan JSON; flags override its values")
	fs.StringVar(&f.songsDir, "songs-dir", def.SongsDir, "Directory holding one folder per song")
	fs.StringVar(&f.format, "format", def.Format, "File format to evaluate: mp3|wav")
	fs.IntVar(&f.sampleRate, "sample-rate", def.SampleRate, "Analysis sample rate in Hz")
	fs.StringVar(&f.strategy, "strategy", def.Strategy, "Metric strategy: bss|direct")
	fs.IntVar(&f.filterLength, "filter-length", def.FilterLength, "Distortion filter length for bss")
	fs.BoolVar(&f.permute, "permute", def.Permute, "Search the estimate permutation maximising SIR (bss)")
	fs.StringVar(&f.mixtureStage, "mixture-stage", def.MixtureStage, "Stage whose mixture sets the length when the reference has none")
	fs.StringVar(&f.ffmpeg, "ffmpeg", def.FFmpeg, "ffmpeg binary")
	fs.StringVar(&f.bitrate, "bitrate", def.Bitrate, "MP3 bitrate used when transcoding")
	fs.StringVarP(&f.output, "output", "o", "", "Results file (.csv, .db, .sqlite, .parquet)")
}

func (f *planFlags) resolve(cmd *cobra.Command) (*plan.Plan, error) {
	p := f.defaults()
	if f.path != "" {
		loaded, err := plan.LoadJSONOnto(p, f.path)
		if err != nil {
			return nil, fmt.Errorf("load plan: %w", err)
		}
		p = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("songs-dir") {
		p.SongsDir = f.songsDir
	}
	if fs.Changed("format") {
		p.Format = strings.ToLower(strings.TrimPrefix(f.format, "."))
	}
	if fs.Changed("sample-rate") {
		p.SampleRate = f.sampleRate
	}
	if fs.Changed("strategy") {
		p.Strategy = strings.ToLower(f.strategy)
	}
	if fs.Changed("filter-length") {
		p.FilterLength = f.filterLength
	}
	if fs.Changed("permute") {
		p.Permute = f.permute
	}
	if fs.Changed("mixture-stage") {
		p.MixtureStage = f.mixtureStage
	}
	if fs.Changed("ffmpeg") {
		p.FFmpeg = f.ffmpeg
	}
	if fs.Changed("bitrate") {
		p.Bitrate = f.bitrate
	}
	if fs.Changed("output") {
		p.Output = f.output
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func newLoader(p *plan.Plan, logger *zap.Logger) *loader.Loader {
	var tr *codec.Transcoder
	if p.Format == plan.FormatMP3 {
		tr = &codec.Transcoder{Bin: p.FFmpeg, Bitrate: p.Bitrate}
	}
	return loader.New(codec.NewAuto(p.SampleRate, p.FFmpeg), p.Ext(), tr, logger)
}

func newEvaluator(p *plan.Plan, logger *zap.Logger) (*compare.Evaluator, error) {
	strategy, err := analysis.NewStrategy(p.Strategy, p.FilterLength, p.Permute)
	if err != nil {
		return nil, err
	}
	return &compare.Evaluator{
		SongsDir:     p.SongsDir,
		Loader:       newLoader(p, logger),
		Strategy:     strategy,
		MixtureStage: p.MixtureStage,
		Diagnostics:  p.Diagnostics,
		SampleRate:   p.SampleRate,
		Logger:       logger,
	}, nil
}

// listSongs returns the song directories below dir in name order.
func listSongs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var songs []string
	for _, e := range entries {
		if e.IsDir() {
			songs = append(songs, e.Name())
		}
	}
	sort.Strings(songs)
	return songs, nil
}
