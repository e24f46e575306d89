package computer

import (
	"errors"
	"fmt"
)

// superstepQuota counts the supersteps of one job and enforces the cap.
//
// The cap is what guarantees termination for programs whose vertices never
// all vote to halt. Each job has its own quota.
type superstepQuota struct {
	limit   int
	current int
}

func newSuperstepQuota(limit int) *superstepQuota {
	return &superstepQuota{limit: limit}
}

// Check counts one more superstep and fails once the count exceeds the limit.
// It is called before each superstep starts.
func (q *superstepQuota) Check(jobID string) error {
	q.current++
	if q.current > q.limit {
		return &SuperstepLimitError{
			JobID:      jobID,
			Supersteps: q.current - 1,
			Limit:      q.limit,
		}
	}
	return nil
}

// SuperstepLimitError is returned when a job reaches computer.max_supersteps
// without halting.
type SuperstepLimitError struct {
	JobID      string
	Supersteps int // supersteps completed
	Limit      int
}

// Error implements the error interface.
func (e *SuperstepLimitError) Error() string {
	return fmt.Sprintf("job %s did not halt within %d supersteps (ran %d)",
		e.JobID, e.Limit, e.Supersteps)
}

// IsSuperstepLimitError returns true if the error is a SuperstepLimitError.
// Uses errors.As to handle wrapped errors.
func IsSuperstepLimitError(err error) bool {
	var se *SuperstepLimitError
	return errors.As(err, &se)
}
