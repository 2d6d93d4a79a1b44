// Package rating collects subjective listening scores for separated stems.
package rating

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-stemeval/stem"
)

const (
	MinScore = 1.0
	MaxScore = 10.0
)

var (
	// ErrAborted is returned when the input ends before every channel was
	// rated.
	ErrAborted    = errors.New("rating aborted")
	ErrNotNumeric = errors.New("score is not a number")
	ErrOutOfRange = errors.New("score out of range")
)

// Entry is the listener's verdict for one channel.
type Entry struct {
	Score float64
	Notes string
}

// Sheet holds one entry per channel, indexed by stem.Channel.
type Sheet struct {
	Song    string
	Entries [stem.Count]Entry
}

// Entry returns the verdict for ch.
func (s Sheet) Entry(ch stem.Channel) Entry {
	if !ch.Valid() {
		return Entry{}
	}
	return s.Entries[ch]
}

// PromptOrder is the order in which channels are asked for.
func PromptOrder() []stem.Channel {
	return []stem.Channel{stem.Drums, stem.Bass, stem.Vocals, stem.Other}
}

// Collect asks for a score and notes per channel on out and reads the
// answers line by line from in. Invalid scores are asked again.
func Collect(song string, in io.Reader, out io.Writer) (Sheet, error) {
	sheet := Sheet{Song: song}
	sc := bufio.NewScanner(in)
	for _, ch := range PromptOrder() {
		score, err := askScore(sc, out, ch)
		if err != nil {
			return sheet, err
		}
		fmt.Fprintf(out, "For the %s separation file, you may provide free text about your hearing estimation:\n", ch.Title())
		notes, err := readLine(sc)
		if err != nil {
			return sheet, err
		}
		sheet.Entries[ch] = Entry{Score: score, Notes: notes}
	}
	fmt.Fprintln(out, "\nThank you!")
	return sheet, nil
}

func askScore(sc *bufio.Scanner, out io.Writer, ch stem.Channel) (float64, error) {
	for {
		fmt.Fprintf(out, "For the %s separation file, please give me a score from %g to %g:\n", ch.Title(), MinScore, MaxScore)
		line, err := readLine(sc)
		if err != nil {
			return 0, err
		}
		v, err := ParseScore(line)
		switch {
		case errors.Is(err, ErrNotNumeric):
			fmt.Fprintln(out, "Invalid input. Please enter a numeric value.")
		case err != nil:
			fmt.Fprintf(out, "Please enter a number between %g and %g.\n", MinScore, MaxScore)
		default:
			return v, nil
		}
	}
}

// ParseScore parses a score and checks it lies in [MinScore, MaxScore].
func ParseScore(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if math.IsNaN(v) || v < MinScore || v > MaxScore {
		return 0, fmt.Errorf("%w: %g", ErrOutOfRange, v)
	}
	return v, nil
}

func readLine(sc *bufio.Scanner) (string, error) {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrAborted, err)
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(sc.Text()), nil
}
