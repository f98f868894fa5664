package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/fmueller/silkconv/internal/platform"
)

const versionProbeTimeout = 5 * time.Second

func newToolsCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show where the external conversion tools were found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			rt := platform.CurrentRuntime()
			fmt.Fprintf(out, "platform: %s/%s\n", rt.OS, rt.Arch)
			if app.toolsDir != "" {
				fmt.Fprintf(out, "tools dir: %s\n", app.toolsDir)
			}
			fmt.Fprintln(out)

			names := app.toolNames()
			finder := app.finder()
			missing := 0
			for _, tool := range []struct{ role, name string }{
				{"decoder", names.Decoder},
				{"encoder", names.Encoder},
				{"transcoder", names.Transcoder},
			} {
				path, err := finder.Find(tool.name)
				if err != nil {
					missing++
					fmt.Fprintf(out, "%-10s %s: %v\n", tool.role, tool.name, err)
					continue
				}
				fmt.Fprintf(out, "%-10s %s\n", tool.role, path)
				if tool.role == "transcoder" {
					if line := firstVersionLine(cmd.Context(), path); line != "" {
						fmt.Fprintf(out, "%-10s %s\n", "", line)
					}
				}
			}

			if missing > 0 {
				return fmt.Errorf("%d tool(s) not found", missing)
			}
			return nil
		},
	}
}

// firstVersionLine runs `<tool> -version` and returns the first output line,
// or "" when the tool does not answer.
func firstVersionLine(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ""
	}
	return readFirstLine(bytes.NewReader(out))
}

func readFirstLine(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}
