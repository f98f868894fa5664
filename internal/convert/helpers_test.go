package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	fakeDecoder    = "/tools/silk_v3_decoder"
	fakeEncoder    = "/tools/silk_v3_encoder"
	fakeTranscoder = "/tools/ffmpeg"
)

var testTools = ToolNames{Decoder: "silk_v3_decoder", Encoder: "silk_v3_encoder", Transcoder: "ffmpeg"}

type stageCall struct {
	Tool string
	Args []string
}

// fakeStages simulates the external tools: by default every call succeeds and
// writes the file the real tool would produce.
type fakeStages struct {
	mu    sync.Mutex
	calls []stageCall
	fail  func(call stageCall) (StageResult, bool)
}

func (f *fakeStages) Run(_ context.Context, executable string, args ...string) StageResult {
	call := stageCall{Tool: executable, Args: append([]string{}, args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fail := f.fail
	f.mu.Unlock()

	if fail != nil {
		if result, handled := fail(call); handled {
			return result
		}
	}

	if out := producedPath(call); out != "" {
		if err := os.WriteFile(out, []byte{0, 0, 1, 0}, 0o644); err != nil {
			return StageResult{ExitCode: 1, Err: err}
		}
	}
	return StageResult{Succeeded: true}
}

func (f *fakeStages) Calls() []stageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stageCall{}, f.calls...)
}

func producedPath(call stageCall) string {
	switch call.Tool {
	case fakeDecoder, fakeEncoder:
		if len(call.Args) >= 2 {
			return call.Args[1]
		}
	case fakeTranscoder:
		if len(call.Args) > 0 {
			return call.Args[len(call.Args)-1]
		}
	}
	return ""
}

func failWhen(match func(call stageCall) bool, exitCode int) func(stageCall) (StageResult, bool) {
	return func(call stageCall) (StageResult, bool) {
		if !match(call) {
			return StageResult{}, false
		}
		return StageResult{ExitCode: exitCode, Stderr: "boom", Err: fmt.Errorf("exit status %d", exitCode)}, true
	}
}

func sourceIs(tool, base string) func(call stageCall) bool {
	return func(call stageCall) bool {
		if call.Tool != tool {
			return false
		}
		for _, arg := range call.Args {
			if filepath.Base(arg) == base {
				return true
			}
		}
		return false
	}
}

type fakeLocator struct {
	missing map[string]bool
}

func (l fakeLocator) Find(name string) (string, error) {
	if l.missing[name] {
		return "", fmt.Errorf("%s not found: %w", name, errToolMissing)
	}
	return "/tools/" + name, nil
}

var errToolMissing = errors.New("tool missing")

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func pcmFiles(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	for _, name := range listDir(t, dir) {
		if strings.HasSuffix(name, ".pcm") {
			out = append(out, name)
		}
	}
	return out
}

func decodeParams() Params {
	return Params{Direction: Decode, Format: FormatMP3, SampleRate: 24000}
}

func encodeParams() Params {
	return Params{
		Direction:    Encode,
		Format:       FormatSilk,
		SampleRate:   24000,
		Bitrate:      25000,
		PacketLength: 20,
		Complexity:   2,
		VendorCompat: true,
	}
}
