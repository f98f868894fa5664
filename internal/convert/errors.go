package convert

import (
	"errors"
	"fmt"
)

// Sentinels for validation failures. A *ValidationError matches exactly one
// of them under errors.Is.
var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrIncompatibleFormat     = errors.New("incompatible output format")
	ErrInvalidOutputDirectory = errors.New("invalid output directory")
	ErrEmptyBatch             = errors.New("no eligible input files")
)

// ValidationError rejects a request before any file is touched.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}

func invalidParameter(field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: ErrInvalidParameter, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies a failed job. Per-file kinds never abort a batch.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindStage1Failed
	KindStage2Failed
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStage1Failed:
		return "stage1_failed"
	case KindStage2Failed:
		return "stage2_failed"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}
