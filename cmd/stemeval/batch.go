package main

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/compare"
	"github.com/cwbudde/algo-stemeval/internal/audioio"
	"github.com/cwbudde/algo-stemeval/results"
)

func newBatchCmd(root *rootOptions) *cobra.Command {
	var (
		flags       planFlags
		workersRaw  string
		diagnostics bool
		noProgress  bool
	)
	cmd := &cobra.Command{
		Use:   "batch [song...]",
		Short: "Score every run for many songs in parallel",
		Long:  "Scores the plan's runs for the given songs, or for every song directory when none are named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("diagnostics") {
				p.Diagnostics = diagnostics
			}
			workers, err := audioio.ParseWorkers(workersRaw)
			if err != nil {
				return fmt.Errorf("invalid --workers: %w", err)
			}

			songs := args
			if len(songs) == 0 {
				songs, err = listSongs(p.SongsDir)
				if err != nil {
					return fmt.Errorf("list songs: %w", err)
				}
			}
			if len(songs) == 0 {
				return fmt.Errorf("no songs found in %s", p.SongsDir)
			}

			ev, err := newEvaluator(p, root.logger)
			if err != nil {
				return err
			}

			var progressOut io.Writer = cmd.ErrOrStderr()
			if noProgress {
				progressOut = io.Discard
			}
			progress := mpb.New(mpb.WithWidth(64), mpb.WithOutput(progressOut))
			bar := progress.AddBar(int64(len(songs)),
				mpb.PrependDecorators(
					decor.Name("Evaluating: "),
					decor.CountersNoUnit("%d / %d"),
				),
				mpb.AppendDecorators(
					decor.Percentage(),
					decor.Elapsed(decor.ET_STYLE_GO),
				),
			)

			var failed int64
			reports := ev.Batch(songs, p.Runs, workers, func(rep compare.Report) {
				if rep.Failed() {
					atomic.AddInt64(&failed, 1)
				}
				bar.Increment()
			})
			progress.Wait()

			out := cmd.OutOrStdout()
			var rows []results.Row
			for _, rep := range reports {
				printReport(out, rep)
				fmt.Fprintln(out)
				rows = append(rows, reportRows(rep, nil)...)
			}
			root.logger.Info("batch finished",
				zap.Int("songs", len(songs)),
				zap.Int64("failed", failed),
				zap.Int("workers", workers),
			)
			if err := storeRows(p.Output, rows, root.logger); err != nil {
				return err
			}
			if int(failed) == len(songs) {
				return fmt.Errorf("all %d songs failed", len(songs))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&workersRaw, "workers", "auto", "Parallel songs: integer >= 1 or 'auto'")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "Add lag, envelope and spectral distances per channel")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide the progress bar")
	return cmd
}
