package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// runIsolated runs the root command with an empty config file and the
// given tools directory, so the host's config and PATH do not leak in.
func runIsolated(t *testing.T, toolsDir string, args ...string) (string, string, error) {
	t.Helper()
	base := []string{"--config", writeConfigFile(t, ""), "--no-progress"}
	if toolsDir != "" {
		base = append(base, "--tools-dir", toolsDir)
	}
	return runCommand(t, append(args, base...))
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const (
	// Files whose name contains "bad" make the Silk decoder fail.
	decoderStub = `#!/bin/sh
case "$1" in *bad*) echo "not a silk file" >&2; exit 1;; esac
printf '\000\000\001\000' > "$2"
`
	encoderStub = `#!/bin/sh
printf '#!SILK_V3' > "$2"
`
	// Files whose name contains "nofallback" make ffmpeg fail.
	transcoderStub = `#!/bin/sh
if [ "$1" = "-version" ]; then echo "ffmpeg version 6.1-stub"; exit 0; fi
case "$*" in *nofallback*) echo "invalid data" >&2; exit 1;; esac
for last; do :; done
printf 'audio' > "$last"
`
)

// setupToolStubs writes shell stand-ins for the three external tools.
func setupToolStubs(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tool stubs require a POSIX shell")
	}

	dir := t.TempDir()
	for name, body := range map[string]string{
		"silk_v3_decoder": decoderStub,
		"silk_v3_encoder": encoderStub,
		"ffmpeg":          transcoderStub,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
	}
	return dir
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("input"), 0o644))
	return path
}

func pcmLeftovers(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.pcm"))
	require.NoError(t, err)
	return matches
}
