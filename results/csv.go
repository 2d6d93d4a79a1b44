package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// ErrHeaderMismatch is returned when an existing CSV file was written with
// different columns.
var ErrHeaderMismatch = errors.New("csv header mismatch")

// CSV appends rows to a comma separated file. The header is written only
// when the file is new or empty; a non-empty file must already carry it.
type CSV struct {
	f *os.File
	w *csv.Writer
}

func OpenCSV(path string) (*CSV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() > 0 {
		if err := checkHeader(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	s := &CSV{f: f, w: csv.NewWriter(f)}
	if fi.Size() == 0 {
		if err := s.w.Write(Header()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return s, nil
}

func checkHeader(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	got, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(got, Header()) {
		return fmt.Errorf("%w: file has %d columns starting %q", ErrHeaderMismatch, len(got), got[0])
	}
	return nil
}

func (s *CSV) Write(rows ...Row) error {
	for _, r := range rows {
		if err := s.w.Write(r.Record()); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSV) Close() error {
	s.w.Flush()
	werr := s.w.Error()
	if err := s.f.Close(); err != nil {
		return err
	}
	return werr
}
