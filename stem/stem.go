// Package stem defines the fixed set of separated channels and the
// equal-length channel sets compared by the metric engine.
package stem

import (
	"errors"
	"fmt"
	"strings"
)

// Channel identifies one stem of a musical mixture.
type Channel int

const (
	Vocals Channel = iota
	Drums
	Bass
	Other
)

// Count is the number of recognised channels.
const Count = 4

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrMissingChannel = errors.New("missing channel")
	ErrLengthMismatch = errors.New("channel length mismatch")
)

var channelNames = [Count]string{"vocals", "drums", "bass", "other"}

// Channels returns all channels in canonical order.
func Channels() []Channel {
	return []Channel{Vocals, Drums, Bass, Other}
}

// String returns the lowercase file/column name of the channel.
func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Title returns the capitalised name used in report headers.
func (c Channel) Title() string {
	s := c.String()
	if !c.Valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (c Channel) Valid() bool {
	return c >= Vocals && c <= Other
}

// Parse resolves a case-insensitive channel name.
func Parse(name string) (Channel, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, cn := range channelNames {
		if cn == n {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// Set holds one equal-length mono signal per channel. A Set is never
// modified after construction.
type Set struct {
	signals [Count][]float64
	length  int
}

// NewSet builds a Set from a channel map. Every channel must be present and
// all signals must share one length.
func NewSet(signals map[Channel][]float64) (Set, error) {
	var s Set
	s.length = -1
	for _, ch := range Channels() {
		x, ok := signals[ch]
		if !ok {
			return Set{}, fmt.Errorf("%w: %s", ErrMissingChannel, ch)
		}
		if s.length < 0 {
			s.length = len(x)
		} else if len(x) != s.length {
			return Set{}, fmt.Errorf("%w: %s has %d samples, want %d", ErrLengthMismatch, ch, len(x), s.length)
		}
		s.signals[ch] = x
	}
	for ch := range signals {
		if !ch.Valid() {
			return Set{}, fmt.Errorf("%w: %d", ErrUnknownChannel, int(ch))
		}
	}
	return s, nil
}

// Signal returns the samples of one channel. Callers must not modify them.
func (s Set) Signal(ch Channel) []float64 {
	if !ch.Valid() {
		return nil
	}
	return s.signals[ch]
}

// Len returns the shared signal length.
func (s Set) Len() int {
	if s.length < 0 {
		return 0
	}
	return s.length
}

// Matrix returns the signals as rows in canonical channel order.
func (s Set) Matrix() [][]float64 {
	rows := make([][]float64, Count)
	for _, ch := range Channels() {
		rows[ch] = s.signals[ch]
	}
	return rows
}
