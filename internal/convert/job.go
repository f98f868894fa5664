package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fmueller/silkconv/internal/audio"
	"go.uber.org/zap"
)

type State int

const (
	StatePending State = iota
	StateStage1Running
	StateStage2Running
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStage1Running:
		return "stage1"
	case StateStage2Running:
		return "stage2"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FallbackStatus records the best-effort direct transcode attempted after a
// decode stage-1 failure. It never changes the outcome's Kind.
type FallbackStatus int

const (
	FallbackNone FallbackStatus = iota
	FallbackSucceeded
	FallbackFailed
)

func (f FallbackStatus) String() string {
	switch f {
	case FallbackSucceeded:
		return "succeeded"
	case FallbackFailed:
		return "failed"
	default:
		return "none"
	}
}

// Outcome is the immutable per-file result.
type Outcome struct {
	Source     string
	Success    bool
	Kind       ErrorKind
	OutputPath string
	Fallback   FallbackStatus
	ExitCode   int
	Detail     string
	Elapsed    time.Duration
}

// StageEvent is emitted after every external process a job runs. Position
// is 1 or 2 for the pipeline stages and 0 for the fallback.
type StageEvent struct {
	Source    string
	Direction Direction
	Stage     string
	Position  int
	Result    StageResult
	Elapsed   time.Duration
}

type job struct {
	pipeline Pipeline
	params   Params
	paths    jobPaths
	runner   StageRunner
	fallback bool
	logger   *zap.Logger
	onStage  func(StageEvent)
	exists   func(path string) bool
	remove   func(path string) error

	state State
}

func (j *job) run(ctx context.Context) (out Outcome) {
	started := time.Now()
	defer func() { out.Elapsed = time.Since(started) }()
	defer j.cleanup()
	defer func() {
		if r := recover(); r != nil {
			kind := KindStage1Failed
			if j.state == StateStage2Running {
				kind = KindStage2Failed
			}
			out = j.fail(ctx, kind, -1, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return j.fail(ctx, KindCanceled, 0, err.Error())
	}

	j.state = StateStage1Running
	first := j.runStage(ctx, j.pipeline.First, 1)
	if !first.Succeeded || !j.exists(j.paths.Intermediate) {
		out = j.fail(ctx, KindStage1Failed, first.ExitCode, stageDetail(j.pipeline.First.Name, first, j.paths.Intermediate))
		if out.Kind == KindStage1Failed {
			out.Fallback, out.OutputPath = j.tryFallback(ctx)
		}
		return out
	}
	j.inspectIntermediate()

	j.state = StateStage2Running
	second := j.runStage(ctx, j.pipeline.Second, 2)
	if !second.Succeeded || !j.exists(j.paths.Dest) {
		return j.fail(ctx, KindStage2Failed, second.ExitCode, stageDetail(j.pipeline.Second.Name, second, j.paths.Dest))
	}

	j.state = StateSucceeded
	return Outcome{Source: j.paths.Source, Success: true, Kind: KindNone, OutputPath: j.paths.Dest}
}

func (j *job) runStage(ctx context.Context, spec stageSpec, position int) StageResult {
	tool, args := spec.command(j.paths, j.params)
	j.logger.Debug("running stage",
		zap.String("source", j.paths.Source),
		zap.String("stage", spec.Name),
		zap.String("tool", tool),
		zap.Strings("args", args),
	)

	started := time.Now()
	result := j.runner.Run(ctx, tool, args...)
	elapsed := time.Since(started)

	if !result.Succeeded {
		j.logger.Warn("stage failed",
			zap.String("source", j.paths.Source),
			zap.String("stage", spec.Name),
			zap.Int("exit_code", result.ExitCode),
			zap.Bool("timed_out", result.TimedOut),
			zap.String("stderr", result.Stderr),
			zap.Error(result.Err),
		)
	}

	if j.onStage != nil {
		j.onStage(StageEvent{
			Source:    j.paths.Source,
			Direction: j.pipeline.Direction,
			Stage:     spec.Name,
			Position:  position,
			Result:    result,
			Elapsed:   elapsed,
		})
	}
	return result
}

// tryFallback transcodes the source directly when the Silk decoder could not
// read it. Only decode pipelines carry a fallback stage.
func (j *job) tryFallback(ctx context.Context) (FallbackStatus, string) {
	if !j.fallback || j.pipeline.Fallback == nil || ctx.Err() != nil {
		return FallbackNone, ""
	}

	j.logger.Info("decoder failed; trying direct transcode", zap.String("source", j.paths.Source))
	result := j.runStage(ctx, *j.pipeline.Fallback, 0)
	if result.Succeeded && j.exists(j.paths.Dest) {
		return FallbackSucceeded, j.paths.Dest
	}
	return FallbackFailed, ""
}

func (j *job) inspectIntermediate() {
	stats, err := audio.InspectPCM(j.paths.Intermediate, j.params.SampleRate)
	if err != nil {
		j.logger.Debug("pcm inspection failed", zap.String("pcm", j.paths.Intermediate), zap.Error(err))
		return
	}

	j.logger.Debug("intermediate pcm",
		zap.String("source", j.paths.Source),
		zap.Duration("duration", stats.Duration),
		zap.Float64("rms_dbfs", stats.RMSdBFS),
		zap.Float64("peak_dbfs", stats.PeakdBFS),
	)
	if stats.Silent(audio.DefaultSilenceDBFS) {
		j.logger.Warn("decoded audio is near-silent", zap.String("source", j.paths.Source), zap.Duration("duration", stats.Duration))
	}
}

func (j *job) fail(ctx context.Context, kind ErrorKind, exitCode int, detail string) Outcome {
	if ctx.Err() != nil && kind != KindNone {
		kind = KindCanceled
		detail = ctx.Err().Error()
	}
	j.state = StateFailed
	return Outcome{Source: j.paths.Source, Kind: kind, ExitCode: exitCode, Detail: detail}
}

func (j *job) cleanup() {
	if j.paths.Intermediate == "" || !j.exists(j.paths.Intermediate) {
		return
	}
	if err := j.remove(j.paths.Intermediate); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.logger.Warn("failed to remove intermediate pcm", zap.String("path", j.paths.Intermediate), zap.Error(err))
	}
}

func stageDetail(stage string, result StageResult, expected string) string {
	switch {
	case result.TimedOut:
		return fmt.Sprintf("%s timed out", stage)
	case !result.Succeeded && result.ExitCode < 0 && result.Err != nil:
		return fmt.Sprintf("%s could not run: %v", stage, result.Err)
	case !result.Succeeded:
		if result.Stderr != "" {
			return fmt.Sprintf("%s exited with status %d: %s", stage, result.ExitCode, result.Stderr)
		}
		return fmt.Sprintf("%s exited with status %d", stage, result.ExitCode)
	default:
		return fmt.Sprintf("%s exited cleanly but did not produce %s", stage, expected)
	}
}
