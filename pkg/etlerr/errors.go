package etlerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Stage errors wrap exactly one of these so callers can match
// with errors.Is regardless of how much context was added on the way up.
var (
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrSchemaMismatch      = errors.New("schema mismatch")
	ErrJoinFanout          = errors.New("join fanout")
	ErrTransformIncomplete = errors.New("transform incomplete")
	ErrLoadFailed          = errors.New("load failed")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

var kinds = []error{
	ErrSourceUnavailable,
	ErrSchemaMismatch,
	ErrJoinFanout,
	ErrTransformIncomplete,
	ErrLoadFailed,
}

// StageError provides the failing stage and error kind for a run
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, KindName(e.Kind), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err for stage. The kind is taken from err when it wraps
// one of the known kinds; otherwise fallback is used and err is wrapped with it.
func NewStageError(stage Stage, fallback error, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == nil {
		kind = fallback
		err = fmt.Errorf("%w: %w", fallback, err)
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf returns the error kind wrapped by err, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName renders a kind the way it is reported to users.
func KindName(kind error) string {
	switch kind {
	case ErrSourceUnavailable:
		return "SourceUnavailable"
	case ErrSchemaMismatch:
		return "SchemaMismatch"
	case ErrJoinFanout:
		return "JoinFanout"
	case ErrTransformIncomplete:
		return "TransformIncomplete"
	case ErrLoadFailed:
		return "LoadFailed"
	default:
		return "Unknown"
	}
}
