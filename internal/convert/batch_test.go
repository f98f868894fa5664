package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRunner(stages StageRunner) *Runner {
	return &Runner{
		Tools:   testTools,
		Locator: fakeLocator{},
		Stages:  stages,
		Options: Options{Fallback: true},
	}
}

func TestRunSingleFileDecode(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	src := touch(t, in, "speech.silk")
	stages := &fakeStages{}

	result, err := newTestRunner(stages).Run(context.Background(), src, out, decodeParams())
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	require.Len(t, result.Outcomes, 1)
	require.True(t, result.Outcomes[0].Success)
	require.Equal(t, filepath.Join(out, "speech.mp3"), result.Outcomes[0].OutputPath)
	require.Equal(t, StatusAllSucceeded, result.Status())
	require.FileExists(t, filepath.Join(out, "speech.mp3"))
	require.Empty(t, pcmFiles(t, out))
}

func TestRunSingleFileDefaultsOutputToSourceDirectory(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	src := touch(t, in, "memo.wav")

	result, err := newTestRunner(&fakeStages{}).Run(context.Background(), src, "", encodeParams())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(in, "memo.silk"), result.Outcomes[0].OutputPath)
	require.Empty(t, pcmFiles(t, in))
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	for _, name := range []string{"a.silk", "b.silk", "c.silk"} {
		touch(t, in, name)
	}
	stages := &fakeStages{fail: failWhen(sourceIs(fakeDecoder, "b.silk"), 1)}
	runner := newTestRunner(stages)
	runner.Options.Fallback = false

	params := decodeParams()
	params.Batch = true
	result, err := runner.Run(context.Background(), in, out, params)
	require.NoError(t, err)

	require.Equal(t, 3, result.Total)
	require.Len(t, result.Outcomes, 3)
	require.True(t, result.Outcomes[0].Success)
	require.False(t, result.Outcomes[1].Success)
	require.Equal(t, KindStage1Failed, result.Outcomes[1].Kind)
	require.Equal(t, filepath.Join(in, "b.silk"), result.Outcomes[1].Source)
	require.True(t, result.Outcomes[2].Success)

	require.Equal(t, StatusPartialFailure, result.Status())
	require.Equal(t, 1, result.FailureCount())
	require.ElementsMatch(t, []string{"a.mp3", "c.mp3"}, listDir(t, out))
}

func TestRunEmptyDirectory(t *testing.T) {
	t.Parallel()

	stages := &fakeStages{}
	_, err := newTestRunner(stages).Run(context.Background(), t.TempDir(), t.TempDir(), decodeParams())
	require.ErrorIs(t, err, ErrEmptyBatch)
	require.Empty(t, stages.Calls())
}

func TestRunStrictModeFiltersExtensions(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	touch(t, in, "voice.SILK")
	touch(t, in, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(in, "nested.silk"), 0o755))

	runner := newTestRunner(&fakeStages{})
	runner.Options.Strict = true
	result, err := runner.Run(context.Background(), in, out, decodeParams())
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	require.Equal(t, filepath.Join(in, "voice.SILK"), result.Outcomes[0].Source)
}

func TestRunStrictModeWithoutMatches(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	touch(t, in, "notes.txt")

	runner := newTestRunner(&fakeStages{})
	runner.Options.Strict = true
	_, err := runner.Run(context.Background(), in, t.TempDir(), decodeParams())
	require.ErrorIs(t, err, ErrEmptyBatch)
	require.Contains(t, err.Error(), ".amr/.silk/.slk")
}

func TestRunMissingToolSpawnsNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		direction Direction
		missing   string
		role      string
	}{
		{name: "decoder", direction: Decode, missing: testTools.Decoder, role: "locate decoder"},
		{name: "encoder", direction: Encode, missing: testTools.Encoder, role: "locate encoder"},
		{name: "transcoder", direction: Decode, missing: testTools.Transcoder, role: "locate transcoder"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := t.TempDir()
			touch(t, in, "a.silk")
			touch(t, in, "a.wav")
			stages := &fakeStages{}
			runner := newTestRunner(stages)
			runner.Locator = fakeLocator{missing: map[string]bool{tt.missing: true}}

			params := decodeParams()
			if tt.direction == Encode {
				params = encodeParams()
			}
			result, err := runner.Run(context.Background(), in, t.TempDir(), params)
			require.ErrorIs(t, err, errToolMissing)
			require.Contains(t, err.Error(), tt.role)
			require.Empty(t, result.Outcomes)
			require.Empty(t, stages.Calls())
		})
	}
}

func TestRunConcurrentPreservesInputOrder(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	names := []string{"01.silk", "02.silk", "03.silk", "04.silk", "05.silk", "06.silk"}
	for _, name := range names {
		touch(t, in, name)
	}

	var mu sync.Mutex
	intermediates := map[string]bool{}
	stages := &fakeStages{fail: func(c stageCall) (StageResult, bool) {
		if c.Tool == fakeDecoder {
			mu.Lock()
			intermediates[c.Args[1]] = true
			mu.Unlock()
			if filepath.Base(c.Args[0]) == "01.silk" {
				time.Sleep(30 * time.Millisecond)
			}
		}
		return StageResult{}, false
	}}

	runner := newTestRunner(stages)
	runner.Options.Workers = 3
	var started int
	runner.Hooks.OnFileStart = func(int, int, string) {
		mu.Lock()
		started++
		mu.Unlock()
	}

	result, err := runner.Run(context.Background(), in, out, decodeParams())
	require.NoError(t, err)
	require.Len(t, result.Outcomes, len(names))
	for i, name := range names {
		require.Equal(t, filepath.Join(in, name), result.Outcomes[i].Source)
		require.True(t, result.Outcomes[i].Success)
	}
	require.Len(t, intermediates, len(names))
	require.Equal(t, len(names), started)
	require.Empty(t, pcmFiles(t, out))
}

func TestRunRenamePolicyKeepsExistingOutputs(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	out := t.TempDir()
	src := touch(t, in, "speech.silk")
	require.NoError(t, os.WriteFile(filepath.Join(out, "speech.mp3"), []byte("keep"), 0o644))

	runner := newTestRunner(&fakeStages{})
	runner.Options.Collision = CollisionRename
	result, err := runner.Run(context.Background(), src, out, decodeParams())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, "speech - dup1.mp3"), result.Outcomes[0].OutputPath)

	data, err := os.ReadFile(filepath.Join(out, "speech.mp3"))
	require.NoError(t, err)
	require.Equal(t, "keep", string(data))
}

func TestRunCancellationReportsRemainingFiles(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	for i := 1; i <= 4; i++ {
		touch(t, in, fmt.Sprintf("%d.silk", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newTestRunner(&fakeStages{})
	var outcomes []Outcome
	runner.Hooks.OnOutcome = func(o Outcome) {
		outcomes = append(outcomes, o)
		if len(outcomes) == 2 {
			cancel()
		}
	}

	result, err := runner.Run(ctx, in, t.TempDir(), decodeParams())
	require.True(t, errors.Is(err, context.Canceled))
	require.Len(t, result.Outcomes, 4)
	require.True(t, result.Outcomes[0].Success)
	require.True(t, result.Outcomes[1].Success)
	require.Equal(t, KindCanceled, result.Outcomes[2].Kind)
	require.Equal(t, KindCanceled, result.Outcomes[3].Kind)
	require.Len(t, outcomes, 4)
}

func TestRunReportsStageEvents(t *testing.T) {
	t.Parallel()

	src := touch(t, t.TempDir(), "memo.wav")
	runner := newTestRunner(&fakeStages{})

	var stages []string
	runner.Hooks.OnStage = func(e StageEvent) {
		require.Equal(t, Encode, e.Direction)
		stages = append(stages, e.Stage)
	}

	_, err := runner.Run(context.Background(), src, t.TempDir(), encodeParams())
	require.NoError(t, err)
	require.Equal(t, []string{"transcode", "encode"}, stages)
}

func TestDiscoverListsRegularFilesInOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "b.wav")
	touch(t, dir, "a.mp3")
	touch(t, dir, "c.silk")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	all, err := Discover(dir, Encode, false)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "b.wav"), filepath.Join(dir, "c.silk")}, all)

	strict, err := Discover(dir, Encode, true)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "b.wav")}, strict)
}
