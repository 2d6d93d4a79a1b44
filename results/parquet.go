package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/cwbudde/algo-stemeval/stem"
)

// parquetRow is the flat column layout of a Row.
type parquetRow struct {
	Song         string  `parquet:"song"`
	VocalsRating float64 `parquet:"vocals_rating"`
	VocalsNotes  string  `parquet:"vocals_notes"`
	VocalsSDR    float64 `parquet:"vocals_sdr"`
	VocalsSIR    float64 `parquet:"vocals_sir"`
	DrumsRating  float64 `parquet:"drums_rating"`
	DrumsNotes   string  `parquet:"drums_notes"`
	DrumsSDR     float64 `parquet:"drums_sdr"`
	DrumsSIR     float64 `parquet:"drums_sir"`
	BassRating   float64 `parquet:"bass_rating"`
	BassNotes    string  `parquet:"bass_notes"`
	BassSDR      float64 `parquet:"bass_sdr"`
	BassSIR      float64 `parquet:"bass_sir"`
	OtherRating  float64 `parquet:"other_rating"`
	OtherNotes   string  `parquet:"other_notes"`
	OtherSDR     float64 `parquet:"other_sdr"`
	OtherSIR     float64 `parquet:"other_sir"`
}

type parquetCell struct {
	rating, sdr, sir *float64
	notes            *string
}

func (p *parquetRow) cells() [stem.Count]parquetCell {
	return [stem.Count]parquetCell{
		stem.Vocals: {&p.VocalsRating, &p.VocalsSDR, &p.VocalsSIR, &p.VocalsNotes},
		stem.Drums:  {&p.DrumsRating, &p.DrumsSDR, &p.DrumsSIR, &p.DrumsNotes},
		stem.Bass:   {&p.BassRating, &p.BassSDR, &p.BassSIR, &p.BassNotes},
		stem.Other:  {&p.OtherRating, &p.OtherSDR, &p.OtherSIR, &p.OtherNotes},
	}
}

func toParquet(r Row) parquetRow {
	p := parquetRow{Song: r.Song}
	for ch, c := range p.cells() {
		src := r.Cells[ch]
		*c.rating, *c.notes, *c.sdr, *c.sir = src.Rating, src.Notes, src.SDR, src.SIR
	}
	return p
}

func fromParquet(p parquetRow) Row {
	r := Row{Song: p.Song}
	for ch, c := range p.cells() {
		r.Cells[ch] = Cell{Rating: *c.rating, Notes: *c.notes, SDR: *c.sdr, SIR: *c.sir}
	}
	return r
}

// Parquet writes rows to a new Snappy compressed Parquet file. The file is
// complete once Close returns.
type Parquet struct {
	f  *os.File
	pw *parquet.GenericWriter[parquetRow]
}

func CreateParquet(path string) (*Parquet, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	pw := parquet.NewGenericWriter[parquetRow](f, parquet.Compression(&parquet.Snappy))
	return &Parquet{f: f, pw: pw}, nil
}

func (s *Parquet) Write(rows ...Row) error {
	batch := make([]parquetRow, len(rows))
	for i, r := range rows {
		batch[i] = toParquet(r)
	}
	if _, err := s.pw.Write(batch); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return nil
}

func (s *Parquet) Close() error {
	if err := s.pw.Close(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// ReadParquet reads every row of a Parquet results file.
func ReadParquet(ra io.ReaderAt) ([]Row, error) {
	gr := parquet.NewGenericReader[parquetRow](ra)
	defer gr.Close()

	var out []Row
	batch := make([]parquetRow, 64)
	for {
		n, err := gr.Read(batch)
		for _, p := range batch[:n] {
			out = append(out, fromParquet(p))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
