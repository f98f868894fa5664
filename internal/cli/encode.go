package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fmueller/silkconv/internal/convert"
)

func newEncodeCmd(app *appState) *cobra.Command {
	var (
		outputDir    string
		sampleRate   = strconv.Itoa(convert.DefaultSampleRate)
		bitrate      = strconv.Itoa(convert.DefaultBitrate)
		packetLength = strconv.Itoa(convert.DefaultPacketLength)
		complexity   = strconv.Itoa(convert.DefaultComplexity)
		vendorCompat = true
		batch        bool
	)

	cmd := &cobra.Command{
		Use:   "encode <input>",
		Short: "Convert audio files to Silk voice files",
		Long: "Encode an audio file, or every file in a directory, to Silk.\n" +
			"Each file is transcoded to raw PCM with ffmpeg and then encoded with silk_v3_encoder.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := app.cfg.Defaults
			flags := cmd.Flags()
			if !flags.Changed("sample-rate") {
				sampleRate = strconv.Itoa(d.SampleRate)
			}
			if !flags.Changed("bitrate") {
				bitrate = strconv.Itoa(d.Bitrate)
			}
			if !flags.Changed("packet-length") {
				packetLength = strconv.Itoa(d.PacketLength)
			}
			if !flags.Changed("complexity") && d.Complexity != nil {
				complexity = strconv.Itoa(*d.Complexity)
			}
			if !flags.Changed("vendor-compat") && d.VendorCompat != nil {
				vendorCompat = *d.VendorCompat
			}

			return app.runConversion(cmd, convert.Request{
				InputPath:    args[0],
				OutputDir:    outputDir,
				Direction:    convert.Encode,
				Format:       string(convert.FormatSilk),
				SampleRate:   sampleRate,
				Bitrate:      bitrate,
				PacketLength: packetLength,
				Complexity:   complexity,
				VendorCompat: vendorCompat,
				Batch:        batch,
			}, false)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", outputDir, "Output directory (default: next to the input file; required for directories)")
	cmd.Flags().StringVar(&sampleRate, "sample-rate", sampleRate, "Sample rate in Hz passed to ffmpeg and the encoder")
	cmd.Flags().StringVar(&bitrate, "bitrate", bitrate, "Target bitrate in bits per second")
	cmd.Flags().StringVar(&packetLength, "packet-length", packetLength, "Packet length in milliseconds")
	cmd.Flags().StringVar(&complexity, "complexity", complexity, "Encoder complexity, 0 (fastest) to 2 (best)")
	cmd.Flags().BoolVar(&vendorCompat, "vendor-compat", vendorCompat, "Write the header variant expected by WeChat/QQ")
	cmd.Flags().BoolVar(&batch, "batch", batch, "Treat the input as a directory and convert every file in it")
	return cmd
}
