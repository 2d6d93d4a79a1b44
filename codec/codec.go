// Package codec turns audio files into mono analysis signals and produces
// the compressed copies the evaluation reads.
package codec

import (
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-stemeval/internal/audioio"
)

// DefaultSampleRate is the analysis rate used for all comparisons.
const DefaultSampleRate = 44100

// Decoder decodes a file into a mono signal at a fixed sample rate.
type Decoder interface {
	Decode(path string) ([]float64, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(path string) ([]float64, error)

func (f DecoderFunc) Decode(path string) ([]float64, error) { return f(path) }

// WAV decodes PCM WAV files natively, downmixing and resampling to
// SampleRate.
type WAV struct {
	SampleRate int
}

func (w WAV) Decode(path string) ([]float64, error) {
	x, sr, err := audioio.ReadWAVMono(path)
	if err != nil {
		return nil, err
	}
	return audioio.ResampleIfNeeded(x, sr, rateOrDefault(w.SampleRate))
}

// Auto decodes .wav files natively and everything else through ffmpeg.
type Auto struct {
	WAV    WAV
	FFmpeg FFmpeg
}

// NewAuto returns an Auto decoder for the given rate and ffmpeg binary.
func NewAuto(sampleRate int, ffmpegBin string) Auto {
	return Auto{
		WAV:    WAV{SampleRate: sampleRate},
		FFmpeg: FFmpeg{Bin: ffmpegBin, SampleRate: sampleRate},
	}
}

func (a Auto) Decode(path string) ([]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return a.WAV.Decode(path)
	}
	return a.FFmpeg.Decode(path)
}

func rateOrDefault(sr int) int {
	if sr <= 0 {
		return DefaultSampleRate
	}
	return sr
}
