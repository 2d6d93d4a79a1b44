package results

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-stemeval/analysis"
	"github.com/cwbudde/algo-stemeval/rating"
	"github.com/cwbudde/algo-stemeval/stem"
)

func sampleRow(song string, sdr float64) Row {
	var res analysis.Result
	for _, ch := range stem.Channels() {
		res.Scores[ch] = analysis.Score{SDR: sdr + float64(ch), SIR: 2 * sdr}
	}
	sheet := &rating.Sheet{Song: song}
	sheet.Entries[stem.Drums] = rating.Entry{Score: 7, Notes: "tight, punchy"}
	sheet.Entries[stem.Vocals] = rating.Entry{Score: 4.5, Notes: "some \"bleed\""}
	return NewRow(song, res, sheet)
}

func TestHeaderOrder(t *testing.T) {
	h := Header()
	require.Len(t, h, 1+4*stem.Count)
	assert.Equal(t, "Song Name", h[0])
	assert.Equal(t, []string{"Drums User Rating", "Drums Notes", "Drums SDR", "Drums SIR"}, h[1:5])
	assert.Equal(t, "Bass User Rating", h[5])
	assert.Equal(t, "Vocals User Rating", h[9])
	assert.Equal(t, "Other SIR", h[len(h)-1])
}

func TestNewRowWithoutRatings(t *testing.T) {
	var res analysis.Result
	res.Scores[stem.Bass] = analysis.Score{SDR: 3.25, SIR: -1}
	r := NewRow("song", res, nil)
	rec := r.Record()
	// bass is the second channel block
	assert.Equal(t, []string{"", "", "3.25", "-1"}, rec[5:9])
}

func TestName(t *testing.T) {
	assert.Equal(t, "song", Name("song", ""))
	assert.Equal(t, "song [attack effect]", Name("song", "attack effect"))
}

func TestCSVWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "evaluation.csv")

	s, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(sampleRow("first", 1)))
	require.NoError(t, s.Close())

	s, err = OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(sampleRow("second", 2), sampleRow("third", 3)))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, Header(), recs[0])
	assert.Equal(t, "first", recs[1][0])
	assert.Equal(t, "third", recs[3][0])
	assert.Equal(t, "7", recs[1][1])
	assert.Equal(t, "tight, punchy", recs[1][2])
	assert.Equal(t, "4.5", recs[1][9])
	assert.Equal(t, "some \"bleed\"", recs[1][10])
}

func TestCSVRejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluation.csv")
	legacy := "Song Name,Drums User Rating,Drums Notes,Bass User Rating,Bass Notes," +
		"Vocals User Rating,Vocals Notes,Other User Rating,Other Notes\n" +
		"old,8,,6,,9,,5,\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	_, err := OpenCSV(path)
	require.ErrorIs(t, err, ErrHeaderMismatch)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, legacy, string(b))
}

func TestSQLiteUpsertsBySong(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(sampleRow("b", 1), sampleRow("a", 2)))
	require.NoError(t, s.Write(sampleRow("b", 5)))

	rows, err := s.Rows()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Song)
	assert.Equal(t, "b", rows[1].Song)
	assert.Equal(t, 5.0, rows[1].Cells[stem.Vocals].SDR)
	assert.Equal(t, 7.0, rows[1].Cells[stem.Drums].Rating)
	assert.Equal(t, 0.0, rows[1].Cells[stem.Bass].Rating)
	assert.Equal(t, sampleRow("b", 5), rows[1])
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.parquet")
	s, err := CreateParquet(path)
	require.NoError(t, err)
	want := []Row{sampleRow("x", 1.5), sampleRow("y", -3)}
	require.NoError(t, s.Write(want...))
	require.NoError(t, s.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := ReadParquet(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOpenByExtension(t *testing.T) {
	dir := t.TempDir()
	for name, want := range map[string]any{
		"r.csv":     &CSV{},
		"r.CSV":     &CSV{},
		"r.db":      &SQLite{},
		"r.sqlite":  &SQLite{},
		"r.parquet": &Parquet{},
	} {
		s, err := Open(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.IsType(t, want, s, name)
		require.NoError(t, s.Close())
	}

	_, err := Open(filepath.Join(dir, "r.xlsx"))
	assert.Error(t, err)
}
