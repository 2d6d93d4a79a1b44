package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/algo-stemeval/codec"
	"github.com/cwbudde/algo-stemeval/loader"
)

func newTranscodeCmd(root *rootOptions) *cobra.Command {
	var (
		ffmpeg  string
		bitrate string
	)
	cmd := &cobra.Command{
		Use:   "transcode <stage-dir>...",
		Short: "Convert the mixture and channel WAV files of stage directories to MP3",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr := &codec.Transcoder{Bin: ffmpeg, Bitrate: bitrate}
			l := loader.New(nil, ".mp3", tr, root.logger)
			out := cmd.OutOrStdout()
			for _, dir := range args {
				statuses, err := l.Prepare(dir)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(statuses))
				for name := range statuses {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(out, "%-40s %s\n", filepath.Join(dir, name+".mp3"), statuses[name])
				}
				root.logger.Debug("stage prepared", zap.String("dir", dir), zap.Int("files", len(statuses)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ffmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary")
	cmd.Flags().StringVar(&bitrate, "bitrate", "192k", "MP3 bitrate")
	return cmd
}
