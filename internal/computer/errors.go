package computer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProgram is returned when computer.program names no registered factory.
	ErrUnknownProgram = errors.New("computer: unknown vertex program")

	// ErrUnknownVertex is returned when a message is addressed to a vertex
	// outside the job.
	ErrUnknownVertex = errors.New("computer: message to unknown vertex")
)

// ProgramError wraps an error returned by a vertex program.
type ProgramError struct {
	JobID     string
	Superstep int
	Vertex    int64 // 0 for Setup, Master and Finish
	Phase     string
	Err       error
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	if e.Vertex != 0 {
		return fmt.Sprintf("job %s: %s failed at superstep %d on vertex %d: %v",
			e.JobID, e.Phase, e.Superstep, e.Vertex, e.Err)
	}
	return fmt.Sprintf("job %s: %s failed at superstep %d: %v", e.JobID, e.Phase, e.Superstep, e.Err)
}

func (e *ProgramError) Unwrap() error { return e.Err }

// IsProgramError returns true if the error came from a vertex program.
func IsProgramError(err error) bool {
	var pe *ProgramError
	return errors.As(err, &pe)
}
