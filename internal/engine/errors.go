package engine

import "fmt"

// NotFoundError reports an absent batch, task, job, freelancer or
// application. Entity is capitalized for caller display.
type NotFoundError struct {
	Entity string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// InvalidArgumentError reports missing or malformed input. The call is
// rejected before any mutation.
type InvalidArgumentError struct {
	Msg string
}

func (e InvalidArgumentError) Error() string { return e.Msg }

func invalidArgf(format string, args ...any) InvalidArgumentError {
	return InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// PermissionDeniedError reports an ownership mismatch.
type PermissionDeniedError struct {
	Msg string
}

func (e PermissionDeniedError) Error() string { return e.Msg }

// CapacityExceededError reports a would-be over-allocation. Remaining
// carries the computed remaining capacity so the caller can adjust and
// retry; it is negative when a batch is already overdrawn.
type CapacityExceededError struct {
	BatchID   int64
	Requested int64
	Remaining int64
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("batch %d capacity exceeded: requested %d, remaining %d", e.BatchID, e.Requested, e.Remaining)
}
