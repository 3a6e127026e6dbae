package opsched

import (
	"errors"
	"fmt"
)

// Sentinel errors for the scheduler's dispatch-time failures. Callers
// compare against these with errors.Is; they are returned synchronously
// from the public entry points, never swallowed.
var (
	// ErrInvalidArgument is returned when a nil task, operation, or
	// packet is passed to a dispatch entry point, or when a
	// PartitionRunnable is submitted without a non-negative partition id.
	ErrInvalidArgument = errors.New("opsched: invalid argument")

	// ErrInvalidState is returned when a packet lacking the operation
	// header bit is submitted via Execute.
	ErrInvalidState = errors.New("opsched: packet missing operation header")
)

// ThreadAffinityError is returned by RunOnCallingThread when the calling
// goroutine is not permitted to run the given operation inline (see
// Scheduler.MayRunHere).
type ThreadAffinityError struct {
	PartitionID int
	Caller      string
}

func (e *ThreadAffinityError) Error() string {
	return fmt.Sprintf("opsched: operation for partition %d cannot run on calling thread %s", e.PartitionID, e.Caller)
}

// WorkerFault records a handler panic recovered by a worker loop. The
// worker logs it at error severity and moves on to the next task; a
// faulty handler must never take down its worker (§7).
type WorkerFault struct {
	Worker string
	Value  any
}

func (e *WorkerFault) Error() string {
	return fmt.Sprintf("opsched: handler panic on %s: %v", e.Worker, e.Value)
}
