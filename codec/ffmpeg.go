package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external binary and returns its stdout.
type Runner func(bin string, args ...string) ([]byte, error)

func execRunner(bin string, args ...string) ([]byte, error) {
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

// FFmpeg decodes any format ffmpeg understands into mono float64 samples.
type FFmpeg struct {
	Bin        string
	SampleRate int
	Run        Runner
}

func (f FFmpeg) Decode(path string) ([]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	args := []string{
		"-v", "error", "-nostdin",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(rateOrDefault(f.SampleRate)),
		"-f", "f64le",
		"-",
	}
	raw, err := f.runner()(f.bin(), args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return parseF64LE(raw)
}

func (f FFmpeg) bin() string {
	if f.Bin == "" {
		return "ffmpeg"
	}
	return f.Bin
}

func (f FFmpeg) runner() Runner {
	if f.Run == nil {
		return execRunner
	}
	return f.Run
}

func parseF64LE(raw []byte) ([]float64, error) {
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("truncated f64le stream: %d bytes", len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

// Status reports what a transcode call did.
type Status int

const (
	Converted Status = iota
	SkippedExists
	SkippedNoSource
)

func (s Status) String() string {
	switch s {
	case Converted:
		return "converted"
	case SkippedExists:
		return "skipped (target exists)"
	case SkippedNoSource:
		return "skipped (no source)"
	default:
		return "status(" + strconv.Itoa(int(s)) + ")"
	}
}

// Transcoder converts <base>.wav into <base>.mp3 next to it.
type Transcoder struct {
	Bin     string
	Bitrate string
	Run     Runner
}

// Transcode converts base+".wav" to base+".mp3". An existing target is left
// untouched and a missing source is not an error; both are reported through
// the returned Status.
func (t Transcoder) Transcode(base string) (string, Status, error) {
	wavPath := base + ".wav"
	mp3Path := base + ".mp3"
	if _, err := os.Stat(mp3Path); err == nil {
		return mp3Path, SkippedExists, nil
	}
	if _, err := os.Stat(wavPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mp3Path, SkippedNoSource, nil
		}
		return "", SkippedNoSource, err
	}

	bitrate := t.Bitrate
	if bitrate == "" {
		bitrate = "192k"
	}
	bin := t.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	run := t.Run
	if run == nil {
		run = execRunner
	}
	args := []string{"-y", "-v", "error", "-nostdin", "-i", wavPath, "-vn", "-c:a", "libmp3lame", "-b:a", bitrate, mp3Path}
	if _, err := run(bin, args...); err != nil {
		return "", Converted, fmt.Errorf("transcode %s: %w", wavPath, err)
	}
	return mp3Path, Converted, nil
}
