package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/analysis"
	"github.com/cwbudde/algo-stemeval/compare"
	"github.com/cwbudde/algo-stemeval/rating"
	"github.com/cwbudde/algo-stemeval/results"
	"github.com/cwbudde/algo-stemeval/stem"
)

func printReport(w io.Writer, rep compare.Report) {
	fmt.Fprintf(w, "Song: %s\n", rep.Song)
	for _, o := range rep.Outcomes {
		fmt.Fprintf(w, "\n%s (%s -> %s)\n", o.Run.Label, o.Run.Reference, o.Run.Estimate)
		if !o.OK() {
			fmt.Fprintf(w, "  failed: %v\n", o.Err)
			continue
		}
		printResult(w, o.Result)
		if len(o.Diagnostics) > 0 {
			printDiagnostics(w, o.Diagnostics)
		}
	}
}

func printResult(w io.Writer, res analysis.Result) {
	withSAR := res.Strategy == analysis.StrategyBSS
	header := fmt.Sprintf("  %-8s %10s %10s", "Channel", "SDR [dB]", "SIR [dB]")
	if withSAR {
		header += fmt.Sprintf(" %10s", "SAR [dB]")
	}
	if res.Permutation != nil {
		header += "  Matched"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len([]rune(header))-2))
	for _, ch := range stem.Channels() {
		sc := res.Score(ch)
		line := fmt.Sprintf("  %-8s %10.2f %10.2f", ch.Title(), sc.SDR, sc.SIR)
		if withSAR {
			line += fmt.Sprintf(" %10.2f", sc.SAR)
		}
		if res.Permutation != nil {
			line += "  " + res.Permutation[ch].String()
		}
		fmt.Fprintln(w, line)
	}
}

func printDiagnostics(w io.Writer, ds []analysis.Distance) {
	fmt.Fprintf(w, "  %-8s %8s %10s %12s %12s %10s\n", "Channel", "Lag", "Time RMSE", "Env [dB]", "Spec [dB]", "Level [dB]")
	for _, ch := range stem.Channels() {
		d := ds[ch]
		fmt.Fprintf(w, "  %-8s %8d %10.5f %12.2f %12.2f %10.2f\n",
			ch.Title(), d.LagSamples, d.TimeRMSE, d.EnvelopeRMSEDB, d.SpectralRMSEDB, d.LevelDiffDB)
	}
}

type jsonOutcome struct {
	Label       string                       `json:"label"`
	Reference   string                       `json:"reference"`
	Estimate    string                       `json:"estimate"`
	Result      *analysis.Result             `json:"result,omitempty"`
	Diagnostics map[string]analysis.Distance `json:"diagnostics,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

type jsonReport struct {
	Song string        `json:"song"`
	Runs []jsonOutcome `json:"runs"`
}

func toJSONReport(rep compare.Report) jsonReport {
	out := jsonReport{Song: rep.Song, Runs: make([]jsonOutcome, 0, len(rep.Outcomes))}
	for _, o := range rep.Outcomes {
		jo := jsonOutcome{Label: o.Run.Label, Reference: o.Run.Reference, Estimate: o.Run.Estimate}
		if o.OK() {
			res := o.Result
			jo.Result = &res
			if len(o.Diagnostics) > 0 {
				jo.Diagnostics = make(map[string]analysis.Distance, len(o.Diagnostics))
				for _, ch := range stem.Channels() {
					jo.Diagnostics[ch.String()] = o.Diagnostics[ch]
				}
			}
		} else {
			jo.Error = o.Err.Error()
		}
		out.Runs = append(out.Runs, jo)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportRows converts the successful outcomes of rep into result rows. The
// sheet, when set, is attached to every row.
func reportRows(rep compare.Report, sheet *rating.Sheet) []results.Row {
	single := len(rep.Outcomes) == 1
	var rows []results.Row
	for _, o := range rep.Outcomes {
		if !o.OK() {
			continue
		}
		name := rep.Song
		if !single {
			name = results.Name(rep.Song, o.Run.Label)
		}
		rows = append(rows, results.NewRow(name, o.Result, sheet))
	}
	return rows
}

func storeRows(path string, rows []results.Row, logger *zap.Logger) error {
	if path == "" || len(rows) == 0 {
		return nil
	}
	sink, err := results.Open(path)
	if err != nil {
		return err
	}
	if err := sink.Write(rows...); err != nil {
		sink.Close()
		return fmt.Errorf("store results: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	logger.Info("results saved", zap.String("file", path), zap.Int("rows", len(rows)))
	return nil
}
