package pool

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrArgument   = errors.New("invalid argument")
	ErrScheduling = errors.New("scheduling error")
)

// SchedulingError is recorded when a worker exited without a result.
type SchedulingError struct {
	Index    int
	ID       uuid.UUID
	ExitCode int
	Err      error
}

func (e *SchedulingError) Error() string {
	msg := fmt.Sprintf("job %d (%s): worker exited with code %d without a result", e.Index, e.ID, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchedulingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrScheduling}
	}
	return []error{ErrScheduling, e.Err}
}

// JobError is the failure a job body returned.
type JobError struct {
	Index   int
	ID      uuid.UUID
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %d (%s): %s", e.Index, e.ID, e.Message)
}

// Errors joins the errors of all failed results, nil if there are none.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
