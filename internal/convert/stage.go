package convert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const stderrTailLimit = 2048

// StageResult is the outcome of one external process. Succeeded is true only
// for exit status zero; Stderr is kept for diagnostics and never inspected
// to decide success.
type StageResult struct {
	ExitCode  int
	Succeeded bool
	TimedOut  bool
	Stderr    string
	Err       error
}

// StageRunner runs one external process to completion.
type StageRunner interface {
	Run(ctx context.Context, executable string, args ...string) StageResult
}

// ExecRunner runs stages through os/exec. A positive Timeout bounds every
// process; on expiry the process is killed and the stage fails.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, executable string, args ...string) StageResult {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, executable, args...)
	var stderr bytes.Buffer
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	result := StageResult{Stderr: tail(stderr.String(), stderrTailLimit)}
	if err == nil {
		result.Succeeded = true
		return result
	}

	result.Err = err
	result.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	if r.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.TimedOut = true
	}
	return result
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}

// Toolchain holds the resolved executables for one run: the Silk decoder or
// encoder, depending on direction, and the general transcoder.
type Toolchain struct {
	Codec      string
	Transcoder string
}

type jobPaths struct {
	Source       string
	Intermediate string
	Dest         string
}

type stageSpec struct {
	Name string
	Tool string
	args func(p jobPaths, params Params) []string
}

func (s stageSpec) command(p jobPaths, params Params) (string, []string) {
	return s.Tool, s.args(p, params)
}

// Pipeline is the per-direction stage layout, chosen once per run.
type Pipeline struct {
	Direction Direction
	First     stageSpec
	Second    stageSpec
	Fallback  *stageSpec
}

func newPipeline(direction Direction, tools Toolchain) Pipeline {
	if direction == Encode {
		return Pipeline{
			Direction: Encode,
			First:     stageSpec{Name: "transcode", Tool: tools.Transcoder, args: containerToPCMArgs},
			Second:    stageSpec{Name: "encode", Tool: tools.Codec, args: encoderArgs},
		}
	}
	return Pipeline{
		Direction: Decode,
		First:     stageSpec{Name: "decode", Tool: tools.Codec, args: decoderArgs},
		Second:    stageSpec{Name: "transcode", Tool: tools.Transcoder, args: pcmToContainerArgs},
		Fallback:  &stageSpec{Name: "fallback", Tool: tools.Transcoder, args: directTranscodeArgs},
	}
}

var transcoderPreamble = []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}

func decoderArgs(p jobPaths, params Params) []string {
	return []string{p.Source, p.Intermediate, "-Fs_API", strconv.Itoa(params.SampleRate)}
}

func encoderArgs(p jobPaths, params Params) []string {
	args := []string{
		p.Intermediate, p.Dest,
		"-Fs_API", strconv.Itoa(params.SampleRate),
		"-rate", strconv.Itoa(params.Bitrate),
		"-packetlength", strconv.Itoa(params.PacketLength),
		"-complexity", strconv.Itoa(params.Complexity),
	}
	if params.VendorCompat {
		args = append(args, "-tencent")
	}
	return args
}

func pcmToContainerArgs(p jobPaths, params Params) []string {
	return append(append([]string{}, transcoderPreamble...),
		"-f", "s16le",
		"-ar", strconv.Itoa(params.SampleRate),
		"-ac", "1",
		"-i", p.Intermediate,
		p.Dest,
	)
}

func containerToPCMArgs(p jobPaths, params Params) []string {
	return append(append([]string{}, transcoderPreamble...),
		"-i", p.Source,
		"-f", "s16le",
		"-ar", strconv.Itoa(params.SampleRate),
		"-ac", "1",
		p.Intermediate,
	)
}

func directTranscodeArgs(p jobPaths, _ Params) []string {
	return append(append([]string{}, transcoderPreamble...), "-i", p.Source, p.Dest)
}
