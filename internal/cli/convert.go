package cli

import (
	"fmt"
	"maps"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/silkconv/internal/convert"
	"github.com/fmueller/silkconv/internal/metrics"
	"github.com/fmueller/silkconv/internal/tools"
)

func (a *appState) toolNames() convert.ToolNames {
	return convert.ToolNames{
		Decoder:    a.cfg.Tools.Decoder,
		Encoder:    a.cfg.Tools.Encoder,
		Transcoder: a.cfg.Tools.Transcoder,
	}
}

// finder builds the tool locator. Environment overrides win over config
// file paths.
func (a *appState) finder() tools.Finder {
	names := a.toolNames()
	overrides := make(map[string]string, len(a.cfg.Tools.Paths)+3)
	maps.Copy(overrides, a.cfg.Tools.Paths)

	for role, name := range map[string]string{"decoder": names.Decoder, "encoder": names.Encoder, "transcoder": names.Transcoder} {
		if path := a.env(tools.OverrideEnv(role)); path != "" {
			overrides[name] = path
		}
	}

	return tools.Finder{
		BaseDir:    a.toolsDir,
		Overrides:  overrides,
		SearchPath: true,
		Logger:     a.log(),
	}
}

func (a *appState) runConversion(cmd *cobra.Command, req convert.Request, fallback bool) error {
	params, err := convert.Validate(req)
	if err != nil {
		return err
	}
	collision, err := convert.ParseCollisionPolicy(a.collision)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	progress := newConversionProgress(a.progressEnabled(), params.Batch)

	runner := &convert.Runner{
		Tools:   a.toolNames(),
		Locator: a.finder(),
		Stages:  a.stages,
		Options: convert.Options{
			Workers:      a.workers,
			StageTimeout: a.stageTimeout,
			Collision:    collision,
			Strict:       a.strict,
			Fallback:     fallback,
		},
		Hooks: convert.Hooks{
			OnFileStart: progress.fileStarted,
			OnStage:     recorder.ObserveStage,
			OnOutcome: func(o convert.Outcome) {
				recorder.ObserveOutcome(params.Direction, o)
				progress.fileDone(o)
			},
		},
		Logger: a.log(),
	}

	result, runErr := runner.Run(cmd.Context(), req.InputPath, req.OutputDir, params)
	progress.stop()
	if runErr != nil && len(result.Outcomes) == 0 {
		return runErr
	}

	if a.metricsFile != "" {
		if err := recorder.WriteTextfile(a.metricsFile); err != nil {
			a.log().Warn("failed to write metrics", zap.String("path", a.metricsFile), zap.Error(err))
		}
	}

	printSummary(cmd.OutOrStdout(), result)
	if runErr != nil {
		return fmt.Errorf("conversion interrupted: %w", runErr)
	}
	return failureError(result)
}
