package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fmueller/silkconv/internal/convert"
)

func newDecodeCmd(app *appState) *cobra.Command {
	var (
		outputDir  string
		format     = string(convert.FormatMP3)
		sampleRate = strconv.Itoa(convert.DefaultSampleRate)
		batch      bool
		fallback   = true
	)

	cmd := &cobra.Command{
		Use:   "decode <input>",
		Short: "Convert Silk voice files to mp3, wav or ogg",
		Long: "Decode a Silk file, or every file in a directory, to a common audio format.\n" +
			"Each file is decoded to raw PCM with silk_v3_decoder and then transcoded with ffmpeg.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("format") {
				format = app.cfg.Defaults.Format
			}
			if !flags.Changed("sample-rate") {
				sampleRate = strconv.Itoa(app.cfg.Defaults.SampleRate)
			}
			if !flags.Changed("fallback") {
				fallback = app.cfg.Batch.FallbackEnabled()
			}

			return app.runConversion(cmd, convert.Request{
				InputPath:  args[0],
				OutputDir:  outputDir,
				Direction:  convert.Decode,
				Format:     format,
				SampleRate: sampleRate,
				Batch:      batch,
			}, fallback)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", outputDir, "Output directory (default: next to the input file; required for directories)")
	cmd.Flags().StringVar(&format, "format", format, "Output format: mp3|wav|ogg")
	cmd.Flags().StringVar(&sampleRate, "sample-rate", sampleRate, "Sample rate in Hz of the decoded audio")
	cmd.Flags().BoolVar(&batch, "batch", batch, "Treat the input as a directory and convert every file in it")
	cmd.Flags().BoolVar(&fallback, "fallback", fallback, "Try a direct ffmpeg transcode when the Silk decoder fails")
	return cmd
}
