package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrWorkspaceCollision              = errors.New("pipeline: workspace already exists")
	ErrExecutionEnvironmentUnavailable = errors.New("pipeline: container execution environment unavailable")
	ErrGeneratorInvocationFailure      = errors.New("pipeline: generator invocation failed")
	ErrPermissionChangeFailure         = errors.New("pipeline: permission change failed")
)

// StageError records which step of the run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// GeneratorExitError is returned when the generator process ran to completion
// but exited with a non-zero status.
type GeneratorExitError struct {
	ExitCode int
}

func (e *GeneratorExitError) Error() string {
	return fmt.Sprintf("generator exited with code %d", e.ExitCode)
}

func (e *GeneratorExitError) Is(target error) bool {
	return target == ErrGeneratorInvocationFailure
}

// ExitCode returns the generator exit code carried by err, if any.
func ExitCode(err error) (int, bool) {
	var exitErr *GeneratorExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode != 0 {
		return exitErr.ExitCode, true
	}
	return 0, false
}
