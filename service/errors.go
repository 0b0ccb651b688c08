package service

import (
	"errors"
	"fmt"

	"story-video-worker/constant"
)

// ErrNoPlayableSegments marks a composition with zero renderable scenes.
var ErrNoPlayableSegments = errors.New("no playable segments")

// StageError wraps a collaborator failure with the pipeline stage it
// happened in, so the executor's failure handling is uniform across stages.
type StageError struct {
	Stage constant.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage constant.Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
