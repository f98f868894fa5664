package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source extensions accepted in strict batch mode, per direction.
var (
	decodeExtensions = map[string]bool{".silk": true, ".slk": true, ".amr": true}
	encodeExtensions = map[string]bool{
		".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".aac": true,
		".flac": true, ".opus": true, ".wma": true,
	}
)

// SourceExtensions returns the strict-mode extensions for a direction.
func SourceExtensions(d Direction) map[string]bool {
	if d == Encode {
		return encodeExtensions
	}
	return decodeExtensions
}

// Discover lists the immediate regular files of dir in lexical order. With
// strict set only files whose extension matches the direction are kept.
func Discover(dir string, direction Direction, strict bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	exts := SourceExtensions(direction)
	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !isRegularFile(entry, path) {
			continue
		}
		if strict && !exts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

func isRegularFile(entry os.DirEntry, path string) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ToolNames are the executable names of the three external tools.
type ToolNames struct {
	Decoder    string
	Encoder    string
	Transcoder string
}

// Locator resolves a tool name to an executable path.
type Locator interface {
	Find(name string) (string, error)
}

type Options struct {
	// Workers bounds how many files convert at once; values below 2 keep the
	// strictly sequential behaviour.
	Workers      int
	StageTimeout time.Duration
	Collision    CollisionPolicy
	Strict       bool
	Fallback     bool
}

// Hooks receive progress notifications. With Workers > 1 they may be called
// from several goroutines at once.
type Hooks struct {
	OnFileStart func(index, total int, source string)
	OnStage     func(StageEvent)
	OnOutcome   func(Outcome)
}

// Runner converts one input file or every eligible file of a directory.
type Runner struct {
	Tools   ToolNames
	Locator Locator
	Stages  StageRunner
	Options Options
	Hooks   Hooks
	Logger  *zap.Logger
}

type Status int

const (
	StatusAllSucceeded Status = iota
	StatusPartialFailure
)

func (s Status) String() string {
	if s == StatusPartialFailure {
		return "partial_failure"
	}
	return "all_succeeded"
}

// BatchResult holds one outcome per selected input, in input order.
type BatchResult struct {
	Total    int
	Outcomes []Outcome
}

func (b BatchResult) Failures() []Outcome {
	var failed []Outcome
	for _, o := range b.Outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}

func (b BatchResult) FailureCount() int {
	return len(b.Failures())
}

func (b BatchResult) Status() Status {
	if b.FailureCount() > 0 {
		return StatusPartialFailure
	}
	return StatusAllSucceeded
}

// Run resolves both tools, expands the input and converts every file. Fatal
// errors (missing tool, empty batch) are returned before any process starts;
// per-file failures are reported in the result only. When ctx ends early the
// remaining files are reported as canceled and ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, inputPath, outputDir string, params Params) (BatchResult, error) {
	logger := r.logger()

	toolchain, err := r.resolveTools(params.Direction)
	if err != nil {
		return BatchResult{}, err
	}
	logger.Debug("tools resolved", zap.String("codec", toolchain.Codec), zap.String("transcoder", toolchain.Transcoder))

	sources, err := r.expand(inputPath, params.Direction)
	if err != nil {
		return BatchResult{}, err
	}

	if strings.TrimSpace(outputDir) == "" {
		outputDir = filepath.Dir(inputPath)
	}

	workers := r.Options.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	stages := r.Stages
	if stages == nil {
		stages = ExecRunner{Timeout: r.Options.StageTimeout}
	}

	pipeline := newPipeline(params.Direction, toolchain)
	names := newNamer(outputDir, params.Format, r.Options.Collision, workers > 1, sources)
	jobs := make([]*job, len(sources))
	for i, src := range sources {
		jobs[i] = &job{
			pipeline: pipeline,
			params:   params,
			paths:    names.paths(src),
			runner:   stages,
			fallback: r.Options.Fallback,
			logger:   logger,
			onStage:  r.Hooks.OnStage,
			exists:   pathExists,
			remove:   os.Remove,
		}
	}

	logger.Info("conversion started",
		zap.String("direction", params.Direction.String()),
		zap.String("format", string(params.Format)),
		zap.Int("files", len(sources)),
		zap.Int("workers", workers),
		zap.String("output_dir", outputDir),
	)

	result := BatchResult{Total: len(sources), Outcomes: make([]Outcome, len(sources))}
	runOne := func(i int) {
		result.Outcomes[i] = r.runJob(ctx, i, len(sources), jobs[i])
	}

	if workers == 1 {
		for i := range jobs {
			runOne(i)
		}
	} else {
		indexes := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indexes {
					runOne(i)
				}
			}()
		}
		for i := range jobs {
			indexes <- i
		}
		close(indexes)
		wg.Wait()
	}

	logger.Info("conversion finished",
		zap.Int("total", result.Total),
		zap.Int("failed", result.FailureCount()),
		zap.String("status", result.Status().String()),
	)

	return result, ctx.Err()
}

func (r *Runner) runJob(ctx context.Context, index, total int, j *job) Outcome {
	var out Outcome
	if err := ctx.Err(); err != nil {
		out = Outcome{Source: j.paths.Source, Kind: KindCanceled, Detail: err.Error()}
	} else {
		if r.Hooks.OnFileStart != nil {
			r.Hooks.OnFileStart(index, total, j.paths.Source)
		}
		out = j.run(ctx)
	}

	if out.Success {
		r.logger().Info("converted", zap.String("source", out.Source), zap.String("output", out.OutputPath), zap.Duration("elapsed", out.Elapsed))
	} else if out.Kind != KindCanceled {
		r.logger().Warn("conversion failed", zap.String("source", out.Source), zap.Stringer("kind", out.Kind), zap.String("detail", out.Detail))
	}

	if r.Hooks.OnOutcome != nil {
		r.Hooks.OnOutcome(out)
	}
	return out
}

func (r *Runner) resolveTools(direction Direction) (Toolchain, error) {
	if r.Locator == nil {
		return Toolchain{}, fmt.Errorf("no tool locator configured")
	}

	role, codecName := "decoder", r.Tools.Decoder
	if direction == Encode {
		role, codecName = "encoder", r.Tools.Encoder
	}

	codec, err := r.Locator.Find(codecName)
	if err != nil {
		return Toolchain{}, fmt.Errorf("locate %s: %w", role, err)
	}
	transcoder, err := r.Locator.Find(r.Tools.Transcoder)
	if err != nil {
		return Toolchain{}, fmt.Errorf("locate transcoder: %w", err)
	}
	return Toolchain{Codec: codec, Transcoder: transcoder}, nil
}

func (r *Runner) expand(inputPath string, direction Direction) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, invalidParameter("input", "cannot access %s: %v", inputPath, err)
	}
	if !info.IsDir() {
		return []string{inputPath}, nil
	}

	files, err := Discover(inputPath, direction, r.Options.Strict)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		msg := fmt.Sprintf("%s contains no files to %s", inputPath, direction)
		if r.Options.Strict {
			msg = fmt.Sprintf("%s contains no %s files", inputPath, joinExtensions(SourceExtensions(direction)))
		}
		return nil, &ValidationError{Kind: ErrEmptyBatch, Field: "input", Message: msg}
	}
	return files, nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func joinExtensions(exts map[string]bool) string {
	keys := make([]string, 0, len(exts))
	for ext := range exts {
		keys = append(keys, ext)
	}
	sort.Strings(keys)
	return strings.Join(keys, "/")
}
