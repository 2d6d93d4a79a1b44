package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompareCmd(root *rootOptions) *cobra.Command {
	var (
		flags       planFlags
		diagnostics bool
		jsonOut     bool
	)
	cmd := &cobra.Command{
		Use:   "compare <song>",
		Short: "Score the separation, attack and defence stages of one song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("diagnostics") {
				p.Diagnostics = diagnostics
			}
			ev, err := newEvaluator(p, root.logger)
			if err != nil {
				return err
			}

			rep, err := ev.Evaluate(args[0], p.Runs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				if err := writeJSON(out, toJSONReport(rep)); err != nil {
					return err
				}
			} else {
				printReport(out, rep)
			}
			if rep.Failed() {
				return fmt.Errorf("every run of %q failed", rep.Song)
			}
			return storeRows(p.Output, reportRows(rep, nil), root.logger)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "Add lag, envelope and spectral distances per channel")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print scores as JSON")
	return cmd
}
