package traversal

import "sync/atomic"

// StepID is a process-unique, monotonically assigned step handle.
//
// Positions are not stable across chain mutation; StepIDs are. They exist
// for logging and diagnostics and are deliberately excluded from the
// canonical encoding, so two compilations of the same input produce the
// same fingerprint even though their handles differ.
type StepID int64

// stepIDs is the handle allocator. Safe for concurrent use, so chains may
// be built on many goroutines at once.
var stepIDs atomic.Int64

func nextStepID() StepID {
	return StepID(stepIDs.Add(1))
}
