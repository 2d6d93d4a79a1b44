// Package plan describes an evaluation: where the songs live, which stages
// are compared and how they are scored.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-stemeval/analysis"
	"github.com/cwbudde/algo-stemeval/codec"
	"github.com/cwbudde/algo-stemeval/compare"
)

const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"

	DefaultBitrate = "192k"
	DefaultFFmpeg  = "ffmpeg"
)

// Plan is a fully resolved evaluation configuration.
type Plan struct {
	SongsDir     string
	MixtureStage string
	Format       string
	SampleRate   int
	Strategy     string
	FilterLength int
	Permute      bool
	Diagnostics  bool
	FFmpeg       string
	Bitrate      string
	Output       string
	Runs         []compare.Run
}

// NewDefault returns the attack/defence evaluation over ./songs. The three
// stage comparison is scored with the direct strategy.
func NewDefault() *Plan {
	return &Plan{
		SongsDir:     "songs",
		MixtureStage: compare.DefaultMixtureStage,
		Format:       FormatMP3,
		SampleRate:   codec.DefaultSampleRate,
		Strategy:     analysis.StrategyDirect,
		FilterLength: analysis.DefaultFilterLength,
		FFmpeg:       DefaultFFmpeg,
		Bitrate:      DefaultBitrate,
		Runs:         compare.DefaultRuns(),
	}
}

// NewEvaluation returns the single originals/estimated evaluation, scored
// with the full bss decomposition.
func NewEvaluation() *Plan {
	p := NewDefault()
	p.Strategy = analysis.StrategyBSS
	p.Runs = []compare.Run{compare.EvaluationRun()}
	return p
}

// Ext returns the file extension evaluated by the plan.
func (p *Plan) Ext() string {
	return "." + p.Format
}

// File is the JSON schema for plan files. Absent fields keep their
// defaults.
type File struct {
	SongsDir     string        `json:"songs_dir"`
	MixtureStage string        `json:"mixture_stage"`
	Format       string        `json:"format"`
	SampleRate   *int          `json:"sample_rate"`
	Strategy     string        `json:"strategy"`
	FilterLength *int          `json:"filter_length"`
	Permute      *bool         `json:"permute"`
	Diagnostics  *bool         `json:"diagnostics"`
	FFmpeg       string        `json:"ffmpeg"`
	Bitrate      string        `json:"bitrate"`
	Output       string        `json:"output"`
	Runs         []compare.Run `json:"runs"`
}

// LoadJSON loads a plan file and applies it on top of NewDefault.
func LoadJSON(path string) (*Plan, error) {
	return LoadJSONOnto(NewDefault(), path)
}

// LoadJSONOnto loads a plan file and applies it on top of base. Relative
// songs_dir and output paths are resolved against the plan's directory.
func LoadJSONOnto(base *Plan, path string) (*Plan, error) {
	if base == nil {
		return nil, fmt.Errorf("nil base plan")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p := *base
	p.Runs = append([]compare.Run(nil), base.Runs...)
	if err := ApplyFile(&p, &f); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if f.SongsDir != "" && !filepath.IsAbs(p.SongsDir) {
		p.SongsDir = filepath.Clean(filepath.Join(dir, p.SongsDir))
	}
	if f.Output != "" && !filepath.IsAbs(p.Output) {
		p.Output = filepath.Clean(filepath.Join(dir, p.Output))
	}
	return &p, nil
}

// ApplyFile applies a parsed plan file onto an existing plan.
func ApplyFile(dst *Plan, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination plan")
	}
	if f == nil {
		return nil
	}

	if v := strings.TrimSpace(f.SongsDir); v != "" {
		dst.SongsDir = v
	}
	if v := strings.TrimSpace(f.MixtureStage); v != "" {
		dst.MixtureStage = v
	}
	if v := strings.TrimSpace(f.Format); v != "" {
		dst.Format = strings.ToLower(strings.TrimPrefix(v, "."))
	}
	if f.SampleRate != nil {
		dst.SampleRate = *f.SampleRate
	}
	if v := strings.TrimSpace(f.Strategy); v != "" {
		dst.Strategy = strings.ToLower(v)
	}
	if f.FilterLength != nil {
		dst.FilterLength = *f.FilterLength
	}
	if f.Permute != nil {
		dst.Permute = *f.Permute
	}
	if f.Diagnostics != nil {
		dst.Diagnostics = *f.Diagnostics
	}
	if v := strings.TrimSpace(f.FFmpeg); v != "" {
		dst.FFmpeg = v
	}
	if v := strings.TrimSpace(f.Bitrate); v != "" {
		dst.Bitrate = v
	}
	if v := strings.TrimSpace(f.Output); v != "" {
		dst.Output = v
	}
	if f.Runs != nil {
		dst.Runs = append([]compare.Run(nil), f.Runs...)
	}
	return dst.Validate()
}

// Validate checks the plan for values no evaluation can run with.
func (p *Plan) Validate() error {
	switch p.Format {
	case FormatMP3, FormatWAV:
	default:
		return fmt.Errorf("format must be %s or %s, got %q", FormatMP3, FormatWAV, p.Format)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be > 0")
	}
	if _, err := analysis.NewStrategy(p.Strategy, p.FilterLength, p.Permute); err != nil {
		return err
	}
	if p.FilterLength <= 0 {
		return fmt.Errorf("filter_length must be > 0")
	}
	if len(p.Runs) == 0 {
		return fmt.Errorf("runs must not be empty")
	}
	seen := make(map[string]bool, len(p.Runs))
	for i, r := range p.Runs {
		if strings.TrimSpace(r.Label) == "" {
			return fmt.Errorf("runs[%d].label is empty", i)
		}
		if seen[r.Label] {
			return fmt.Errorf("duplicate run label %q", r.Label)
		}
		seen[r.Label] = true
		if r.Reference == "" || r.Estimate == "" {
			return fmt.Errorf("runs[%d] needs reference and estimate stages", i)
		}
	}
	return nil
}
