package app

import (
	"errors"
	"fmt"
)

// Stage names, in pipeline order.
const (
	StageConfig   = "config"
	StageNetwork  = "network discovery"
	StageStart    = "start container"
	StageProxy    = "install proxy script"
	StageSetup    = "setup script"
	StageTest     = "test command"
	StageTeardown = "teardown"
)

// StageError records the pipeline stage an error happened in.
type StageError struct {
	Stage string
	Err   error
}

func (s *StageError) Error() string {
	return fmt.Sprintf("%v: %v", s.Stage, s.Err)
}

func (s *StageError) Unwrap() error { return s.Err }

// failedBeforeStart reports whether err ended the run before the container
// was started.
func failedBeforeStart(err error) bool {
	var stage *StageError
	if !errors.As(err, &stage) {
		return false
	}
	return stage.Stage == StageConfig || stage.Stage == StageNetwork
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
