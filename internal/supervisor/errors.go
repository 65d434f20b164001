package supervisor

import "errors"

// Sentinel errors for supervisor operations.
var (
	ErrInvalidCommand           = errors.New("service command is empty")
	ErrWorkingDirNotFound       = errors.New("working directory does not exist")
	ErrProcessExitedImmediately = errors.New("process exited immediately after start")
	ErrNeverStarted             = errors.New("service was never started")
)
