package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-stemeval/compare"
	"github.com/cwbudde/algo-stemeval/plan"
	"github.com/cwbudde/algo-stemeval/rating"
)

const defaultEvaluationFile = "evaluation.csv"

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	var (
		flags     planFlags
		reference string
		estimate  string
		noRating  bool
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate [song]",
		Short: "Rate and score the separated stems of one song",
		Long: "Asks for a listening score per channel, scores the estimated stems against\n" +
			"the originals and appends both to the results file.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if p.Output == "" {
				p.Output = defaultEvaluationFile
			}

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			var song string
			if len(args) == 1 {
				song = args[0]
			} else if song, err = askSong(in, out); err != nil {
				return err
			}

			var sheet *rating.Sheet
			if !noRating {
				s, err := rating.Collect(song, in, out)
				if err != nil {
					return err
				}
				sheet = &s
			}

			ev, err := newEvaluator(p, root.logger)
			if err != nil {
				return err
			}
			run := compare.EvaluationRun()
			run.Reference = reference
			run.Estimate = estimate
			rep, err := ev.Evaluate(song, []compare.Run{run})
			if err != nil {
				return err
			}
			if rep.Failed() {
				return fmt.Errorf("could not find the music files of %q; expected %s and %s: %w",
					song, ev.StageDir(song, reference), ev.StageDir(song, estimate), rep.Outcomes[0].Err)
			}

			if jsonOut {
				if err := writeJSON(out, toJSONReport(rep)); err != nil {
					return err
				}
			} else {
				printReport(out, rep)
			}
			return storeRows(p.Output, reportRows(rep, sheet), root.logger)
		},
	}
	flags.base = plan.NewEvaluation
	flags.register(cmd)
	cmd.Flags().StringVar(&reference, "reference", compare.StageOriginals, "Reference stage directory")
	cmd.Flags().StringVar(&estimate, "estimate", compare.StageEstimated, "Estimated stage directory")
	cmd.Flags().BoolVar(&noRating, "no-rating", false, "Skip the listening questions")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print scores as JSON")
	return cmd
}

// askSong reads one line from in, leaving the rest buffered for the rating
// questions.
func askSong(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Type song name: ")
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.New("no song name given")
	}
	song := strings.TrimSpace(line)
	if song == "" {
		return "", errors.New("no song name given")
	}
	return song, nil
}
