package opsched

import (
	"context"
	"fmt"

	"github.com/me/opsched/internal/threadid"
)

// Execute is the scheduler's main entry point: it routes task to the
// correct worker's queue and returns once the task is enqueued, not once
// it has run. A nil task, a partition-bound task whose partition id falls
// outside [0, PartitionCount), or a Packet missing HeaderOp is rejected
// with an error instead of being enqueued (§9's open question on
// PartitionRunnable validation: this is the only place that check
// happens, not the internal enqueue helper, so code already holding a
// validated Task can route it cheaply).
func (s *Scheduler) Execute(task Task) error {
	if task == nil {
		return fmt.Errorf("opsched: nil task: %w", ErrInvalidArgument)
	}

	switch t := task.(type) {
	case *Operation:
		if err := s.checkPartitionBounds(t.PartitionID()); err != nil {
			return err
		}
		s.dispatch(t)
		return nil

	case *PartitionRunnable:
		if t.PartitionID() < 0 {
			return fmt.Errorf("opsched: PartitionRunnable requires a non-negative partition id: %w", ErrInvalidArgument)
		}
		if err := s.checkPartitionBounds(t.PartitionID()); err != nil {
			return err
		}
		s.dispatch(t)
		return nil

	case *Packet:
		if !t.isOperation() {
			return fmt.Errorf("opsched: %w", ErrInvalidState)
		}
		if t.isResponse() {
			s.responseWorker.normal.Enqueue(&ResponsePacket{PartitionID_: t.PartitionID_, Payload: t.Payload})
			return nil
		}
		if err := s.checkPartitionBounds(t.PartitionID()); err != nil {
			return err
		}
		s.dispatch(t)
		return nil

	case *ResponsePacket:
		s.responseWorker.normal.Enqueue(t)
		return nil

	default:
		return fmt.Errorf("opsched: unrecognized task type %T: %w", task, ErrInvalidArgument)
	}
}

// checkPartitionBounds rejects a partition-bound task whose id does not
// name one of the scheduler's configured partitions. A negative id means
// "partition-less" and always passes; it is routed to the generic pool
// instead.
func (s *Scheduler) checkPartitionBounds(partitionID int) error {
	if partitionID < 0 {
		return nil
	}
	if partitionID >= len(s.partitionHandlers) {
		return fmt.Errorf("opsched: partition id %d out of range [0, %d): %w", partitionID, len(s.partitionHandlers), ErrInvalidArgument)
	}
	return nil
}

// dispatch routes a partition-bound-or-not Task to the owning partition
// worker's queues or to the shared generic pool, honoring Urgent() via the
// priority-queue-plus-trigger protocol (§4.2). A partition-less task is
// enqueued once onto the generic pool's shared queues, not assigned to any
// single worker, so whichever generic worker is next free picks it up
// (§3, §4.3).
func (s *Scheduler) dispatch(task Task) {
	if task.PartitionID() >= 0 {
		w := s.partitionWorkers[task.PartitionID()%len(s.partitionWorkers)]
		enqueueTo(w.priority, w.normal, task)
		return
	}
	enqueueTo(s.genericPriority, s.genericNormal, task)
}

func enqueueTo(priority *priorityQueue, normal *normalQueue, task Task) {
	if task.Urgent() {
		priority.Enqueue(task)
		// Wake whichever goroutine is blocked on normal.Dequeue so it
		// notices the priority queue gained work; the sentinel itself
		// carries nothing and is discarded by the worker loop.
		normal.Enqueue(trigger)
		return
	}
	normal.Enqueue(task)
}

// RunOnCallingThread executes task synchronously on the calling
// goroutine instead of enqueuing it, but only when MayRunHere(task)
// permits it; otherwise it returns a *ThreadAffinityError and runs
// nothing. This is how a partition worker can invoke partition-local
// work without a queue round-trip, and how request-handling code can
// process an ad-hoc task inline.
func (s *Scheduler) RunOnCallingThread(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("opsched: nil task: %w", ErrInvalidArgument)
	}
	if !s.MayRunHere(task) {
		d := threadid.Current()
		return &ThreadAffinityError{PartitionID: task.PartitionID(), Caller: d.Kind.String()}
	}

	handler := s.handlerForInline(task)
	return s.runInline(ctx, handler, task)
}

func (s *Scheduler) runInline(ctx context.Context, handler OperationHandler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerFault{Worker: threadid.Current().Kind.String(), Value: r}
		}
	}()
	return handler.Process(ctx, task)
}

func (s *Scheduler) handlerForInline(task Task) OperationHandler {
	if task.PartitionID() >= 0 && task.PartitionID() < len(s.partitionHandlers) {
		return s.partitionHandlers[task.PartitionID()]
	}
	return s.adHocHandler
}

// MayRunHere reports whether the calling goroutine is permitted to run
// task inline: a partition task may only run on the partition worker
// that owns it, and a partition-less task may run on any operation
// thread or the I/O thread issuing an ad-hoc call (§4 invariant 2).
func (s *Scheduler) MayRunHere(task Task) bool {
	d := threadid.Current()
	if task.PartitionID() >= 0 {
		return d.Kind == threadid.PartitionWorker && d.ID == task.PartitionID()%len(s.partitionWorkers)
	}
	switch d.Kind {
	case threadid.PartitionWorker, threadid.GenericWorker, threadid.IOThread, threadid.Other:
		return true
	default:
		return false
	}
}

// MayInvokeHere reports whether the calling goroutine may dispatch
// (enqueue, not necessarily run) further work for task without violating
// the reentrancy rule: a partition worker may only invoke work for
// partitions it owns; any other thread kind may invoke anything (§3).
func (s *Scheduler) MayInvokeHere(task Task) bool {
	d := threadid.Current()
	if d.Kind != threadid.PartitionWorker {
		return true
	}
	if task.PartitionID() < 0 {
		return true
	}
	return d.ID == task.PartitionID()%len(s.partitionWorkers)
}

// IsOperationThread reports whether the calling goroutine is one of the
// scheduler's own partition or generic worker goroutines.
func IsOperationThread() bool {
	k := threadid.Current().Kind
	return k == threadid.PartitionWorker || k == threadid.GenericWorker
}

// CurrentThreadOperationHandler returns the OperationHandler currently
// executing on the calling goroutine's worker. Safe to call from any
// goroutine; a caller that is not a partition or generic worker gets the
// ad-hoc handler, and a worker that is between tasks gets (nil, false).
func (s *Scheduler) CurrentThreadOperationHandler() (OperationHandler, bool) {
	d := threadid.Current()
	switch d.Kind {
	case threadid.PartitionWorker:
		for _, w := range s.partitionWorkers {
			if w.threadID == d.ID {
				return w.current.get()
			}
		}
		return nil, false
	case threadid.GenericWorker:
		for _, w := range s.genericWorkers {
			if w.threadID == d.ID {
				return w.current.get()
			}
		}
		return nil, false
	}
	return s.adHocHandler, true
}
