// Package loader builds channel sets from stage directories on disk.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/codec"
	"github.com/cwbudde/algo-stemeval/dsp"
	"github.com/cwbudde/algo-stemeval/internal/logging"
	"github.com/cwbudde/algo-stemeval/stem"
)

// MixtureName is the base name of the full mix inside a stage directory.
const MixtureName = "mixture"

var (
	ErrMissingDirectory   = errors.New("missing directory")
	ErrMissingChannelFile = errors.New("missing channel file")
)

// Loader reads <dir>/<channel><Ext> files through Decoder.
type Loader struct {
	Decoder codec.Decoder
	// Ext is the extension of the files that are decoded, ".mp3" or ".wav".
	Ext string
	// Transcoder, when set, produces the Ext files from .wav sources in
	// Prepare. It is only used for ".mp3".
	Transcoder *codec.Transcoder
	Logger     *zap.Logger
}

// New returns a loader for the given extension.
func New(dec codec.Decoder, ext string, tr *codec.Transcoder, logger *zap.Logger) *Loader {
	return &Loader{Decoder: dec, Ext: ext, Transcoder: tr, Logger: logging.OrNop(logger)}
}

func (l *Loader) ext() string {
	if l.Ext == "" {
		return ".mp3"
	}
	return l.Ext
}

func (l *Loader) logger() *zap.Logger {
	return logging.OrNop(l.Logger)
}

// Path returns the file read for name inside dir.
func (l *Loader) Path(dir string, name string) string {
	return filepath.Join(dir, name+l.ext())
}

// Prepare transcodes the mixture and channel sources of dir when a
// transcoder is configured. It returns the status of each file keyed by base
// name.
func (l *Loader) Prepare(dir string) (map[string]codec.Status, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	if l.Transcoder == nil || l.ext() != ".mp3" {
		return nil, nil
	}
	names := []string{MixtureName}
	for _, ch := range stem.Channels() {
		names = append(names, ch.String())
	}
	statuses := make(map[string]codec.Status, len(names))
	for _, name := range names {
		out, st, err := l.Transcoder.Transcode(filepath.Join(dir, name))
		if err != nil {
			return statuses, err
		}
		statuses[name] = st
		l.logger().Debug("transcode", zap.String("file", out), zap.Stringer("status", st))
	}
	return statuses, nil
}

// ReferenceLength decodes the mixture of dir and returns its sample count.
func (l *Loader) ReferenceLength(dir string) (int, error) {
	if err := checkDir(dir); err != nil {
		return 0, err
	}
	path := l.Path(dir, MixtureName)
	if !fileExists(path) {
		return 0, fmt.Errorf("%w: %s", ErrMissingChannelFile, path)
	}
	x, err := l.Decoder.Decode(path)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return len(x), nil
}

// HasMixture reports whether dir contains a mixture file.
func (l *Loader) HasMixture(dir string) bool {
	return fileExists(l.Path(dir, MixtureName))
}

// Load decodes every channel of dir and aligns it to referenceLength. All
// channel files are checked before the first decode so that a missing file
// fails the whole set without any decoding work.
func (l *Loader) Load(dir string, referenceLength int) (stem.Set, error) {
	if err := l.Check(dir); err != nil {
		return stem.Set{}, err
	}

	signals := make(map[stem.Channel][]float64, stem.Count)
	for _, ch := range stem.Channels() {
		path := l.Path(dir, ch.String())
		x, err := l.Decoder.Decode(path)
		if err != nil {
			return stem.Set{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if len(x) != referenceLength {
			l.logger().Debug("aligning channel",
				zap.String("file", path),
				zap.Int("samples", len(x)),
				zap.Int("reference_length", referenceLength),
			)
		}
		signals[ch] = dsp.Align(x, referenceLength)
	}
	return stem.NewSet(signals)
}

// Check reports ErrMissingDirectory or ErrMissingChannelFile for dir
// without decoding anything.
func (l *Loader) Check(dir string) error {
	if err := checkDir(dir); err != nil {
		return err
	}
	for _, ch := range stem.Channels() {
		path := l.Path(dir, ch.String())
		if !fileExists(path) {
			return fmt.Errorf("%w: %s", ErrMissingChannelFile, path)
		}
	}
	return nil
}

func checkDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrMissingDirectory, dir)
	}
	return nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
