package results

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cwbudde/algo-stemeval/stem"
)

// SQLite stores rows in the evaluations table, one row per song. Writing a
// song again replaces its previous row.
type SQLite struct {
	db *sql.DB
}

func sqliteColumns() []string {
	cols := []string{"song"}
	for _, ch := range stem.Channels() {
		n := ch.String()
		cols = append(cols, n+"_rating", n+"_notes", n+"_sdr", n+"_sir")
	}
	return cols
}

func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var defs []string
	for _, c := range sqliteColumns()[1:] {
		typ := "REAL"
		if strings.HasSuffix(c, "_notes") {
			typ = "TEXT NOT NULL DEFAULT ''"
		}
		defs = append(defs, c+" "+typ)
	}
	createTableSQL := "CREATE TABLE IF NOT EXISTS evaluations (\n\tsong TEXT PRIMARY KEY,\n\t" +
		strings.Join(defs, ",\n\t") + "\n)"
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Write(rows ...Row) error {
	cols := sqliteColumns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := "INSERT OR REPLACE INTO evaluations (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, r := range rows {
		args := make([]any, 0, len(cols))
		args = append(args, r.Song)
		for _, ch := range stem.Channels() {
			c := r.Cells[ch]
			var rating any
			if c.Rating != 0 {
				rating = c.Rating
			}
			args = append(args, rating, c.Notes, c.SDR, c.SIR)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("store %s: %w", r.Song, err)
		}
	}
	return tx.Commit()
}

// Rows returns every stored row ordered by song.
func (s *SQLite) Rows() ([]Row, error) {
	q := "SELECT " + strings.Join(sqliteColumns(), ", ") + " FROM evaluations ORDER BY song"
	rs, err := s.db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	var out []Row
	for rs.Next() {
		var r Row
		var ratings [stem.Count]sql.NullFloat64
		dest := []any{&r.Song}
		for _, ch := range stem.Channels() {
			c := &r.Cells[ch]
			dest = append(dest, &ratings[ch], &c.Notes, &c.SDR, &c.SIR)
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, err
		}
		for ch, v := range ratings {
			if v.Valid {
				r.Cells[ch].Rating = v.Float64
			}
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
