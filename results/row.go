// Package results persists evaluation rows to CSV, SQLite or Parquet.
package results

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-stemeval/analysis"
	"github.com/cwbudde/algo-stemeval/rating"
	"github.com/cwbudde/algo-stemeval/stem"
)

// Cell is the stored data of one channel.
type Cell struct {
	Rating float64
	Notes  string
	SDR    float64
	SIR    float64
}

// Row is one evaluated song. A zero Rating means the channel was not rated.
type Row struct {
	Song  string
	Cells [stem.Count]Cell
}

// NewRow joins the scores of res with the optional ratings sheet.
func NewRow(song string, res analysis.Result, sheet *rating.Sheet) Row {
	row := Row{Song: song}
	for _, ch := range stem.Channels() {
		sc := res.Score(ch)
		row.Cells[ch].SDR = sc.SDR
		row.Cells[ch].SIR = sc.SIR
		if sheet != nil {
			e := sheet.Entry(ch)
			row.Cells[ch].Rating = e.Score
			row.Cells[ch].Notes = e.Notes
		}
	}
	return row
}

// Name returns the row key of a run. The evaluation run of a song is keyed
// by the song alone.
func Name(song string, label string) string {
	if label == "" {
		return song
	}
	return song + " [" + label + "]"
}

// Header returns the column names in storage order. Channels follow the
// rating prompt order: drums, bass, vocals, other.
func Header() []string {
	cols := []string{"Song Name"}
	for _, ch := range rating.PromptOrder() {
		t := ch.Title()
		cols = append(cols, t+" User Rating", t+" Notes", t+" SDR", t+" SIR")
	}
	return cols
}

// Record renders the row in Header order.
func (r Row) Record() []string {
	rec := make([]string, 0, 1+4*stem.Count)
	rec = append(rec, r.Song)
	for _, ch := range rating.PromptOrder() {
		c := r.Cells[ch]
		rating := ""
		if c.Rating != 0 {
			rating = formatFloat(c.Rating)
		}
		rec = append(rec, rating, c.Notes, formatFloat(c.SDR), formatFloat(c.SIR))
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Sink stores rows.
type Sink interface {
	Write(rows ...Row) error
	Close() error
}

// Open returns the sink matching the extension of path.
func Open(path string) (Sink, error) {
	var (
		s   Sink
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		s, err = OpenCSV(path)
	case ".db", ".sqlite", ".sqlite3":
		s, err = OpenSQLite(path)
	case ".parquet":
		s, err = CreateParquet(path)
	default:
		return nil, fmt.Errorf("unsupported results file %q (use .csv, .db, .sqlite or .parquet)", path)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
