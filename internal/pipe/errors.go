package pipe

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
)

var (
	ErrLaunch     = errors.New("executable not found")
	ErrBrokenPipe = errors.New("broken pipe")
	ErrRunaway    = errors.New("runaway process")
	ErrExitStatus = errors.New("non-zero exit status")
)

// BrokenPipeError is returned when the child stopped reading its input
// before all of it was written. Stderr holds the error output collected
// until the child exited.
type BrokenPipeError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *BrokenPipeError) Error() string {
	msg := "writing to " + e.Command + ": broken pipe"
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *BrokenPipeError) Unwrap() []error {
	return []error{ErrBrokenPipe, e.Err}
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// Err converts a non-zero exit code into an error wrapping ErrExitStatus,
// for callers which treat it as a failure.
func (s Status) Err() error {
	if s.ExitCode == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s exited with %d", ErrExitStatus, s.Command, s.ExitCode)
}
