package cli

import (
	"fmt"
	"io"

	"github.com/fmueller/silkconv/internal/convert"
)

// printSummary writes one line per file and a totals line. Failed files name
// the stage that failed.
func printSummary(w io.Writer, result convert.BatchResult) {
	for _, o := range result.Outcomes {
		fmt.Fprintln(w, outcomeLine(o))
	}
	if result.Total > 1 {
		fmt.Fprintf(w, "%d of %d converted, %d failed\n", result.Total-result.FailureCount(), result.Total, result.FailureCount())
	}
}

func outcomeLine(o convert.Outcome) string {
	if o.Success {
		return fmt.Sprintf("ok      %s -> %s", o.Source, o.OutputPath)
	}

	line := fmt.Sprintf("FAILED  %s (%s)", o.Source, failureReason(o.Kind))
	if o.Detail != "" {
		line += ": " + o.Detail
	}
	switch o.Fallback {
	case convert.FallbackSucceeded:
		line += fmt.Sprintf("; direct transcode wrote %s", o.OutputPath)
	case convert.FallbackFailed:
		line += "; direct transcode also failed"
	}
	return line
}

func failureReason(kind convert.ErrorKind) string {
	switch kind {
	case convert.KindStage1Failed:
		return "stage 1 failed"
	case convert.KindStage2Failed:
		return "stage 2 failed"
	case convert.KindCanceled:
		return "canceled"
	default:
		return kind.String()
	}
}

func failureError(result convert.BatchResult) error {
	if n := result.FailureCount(); n > 0 {
		return fmt.Errorf("conversion finished with %d failure(s)", n)
	}
	return nil
}
