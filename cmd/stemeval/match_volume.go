package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/dsp"
	"github.com/cwbudde/algo-stemeval/internal/audioio"
)

func newMatchVolumeCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		trimDB float64
	)
	cmd := &cobra.Command{
		Use:   "match-volume <original.wav> <recorded.wav>",
		Short: "Scale a recording to the RMS level of the original",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, sr, err := audioio.ReadWAVMono(args[0])
			if err != nil {
				return fmt.Errorf("read original: %w", err)
			}
			recorded, recSR, err := audioio.ReadWAVMono(args[1])
			if err != nil {
				return fmt.Errorf("read recording: %w", err)
			}
			recorded, err = audioio.ResampleIfNeeded(recorded, recSR, sr)
			if err != nil {
				return fmt.Errorf("resample recording: %w", err)
			}

			adjusted, gain := dsp.MatchRMS(original, recorded, trimDB)
			if output == "" {
				output = adjustedPath(args[1])
			}
			if err := audioio.WriteMonoWAV(output, adjusted, sr); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Original RMS level: %.6f\n", dsp.RMS(original))
			fmt.Fprintf(out, "Recorded RMS level: %.6f\n", dsp.RMS(recorded))
			fmt.Fprintf(out, "Gain factor:        %.6f\n", gain)
			fmt.Fprintf(out, "Adjusted recording saved as %s\n", output)
			root.logger.Debug("volume matched",
				zap.String("original", args[0]),
				zap.String("recorded", args[1]),
				zap.Float64("gain", gain),
				zap.Float64("trim_db", trimDB),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output WAV (default <recorded>_adjusted.wav)")
	cmd.Flags().Float64Var(&trimDB, "trim-db", 0, "Extra gain in dB applied after matching")
	return cmd
}

func adjustedPath(recorded string) string {
	ext := filepath.Ext(recorded)
	return strings.TrimSuffix(recorded, ext) + "_adjusted.wav"
}
