package opsched

import "context"

// OperationHandler is the external collaborator that actually interprets
// and executes a task. The scheduler is oblivious to its semantics; it
// only invokes Process.
type OperationHandler interface {
	// Process runs task to completion. A panic is recovered by the
	// calling worker and logged as a WorkerFault; Process itself may
	// also just return an error, which is logged the same way.
	Process(ctx context.Context, task Task) error

	// CurrentTask returns the task presently being processed by this
	// handler, or (nil, false) when idle. The scheduler does not call it;
	// Scheduler.RunningOperationCount reads each worker's current-handler
	// slot instead.
	CurrentTask() (Task, bool)
}

// OperationHandlerFactory builds the handler table at scheduler
// construction time (§4.7 step 2). All handlers it returns are created
// before any worker starts and never mutated afterward.
type OperationHandlerFactory interface {
	// CreatePartitionHandler builds the handler for partition
	// partitionID. Called exactly PartitionCount times.
	CreatePartitionHandler(partitionID int) OperationHandler

	// CreateGenericOperationHandler builds one generic worker's handler.
	// Called exactly G times.
	CreateGenericOperationHandler() OperationHandler

	// CreateAdHocOperationHandler builds the single ad-hoc handler used
	// when a non-worker thread calls RunOnCallingThread or queries
	// CurrentThreadOperationHandler.
	CreateAdHocOperationHandler() OperationHandler
}

// ResponsePacketHandler processes response packets on the dedicated
// response worker.
type ResponsePacketHandler interface {
	Handle(ctx context.Context, packet *ResponsePacket) error
}

// NodeExtension is invoked by every worker immediately before it begins
// processing a task and immediately after it finishes, so a host can
// install and tear down thread-local state (e.g. a security context).
// Either hook may be nil via NoopNodeExtension.
type NodeExtension interface {
	BeforeProcess(ctx context.Context, worker string, task Task)
	AfterProcess(ctx context.Context, worker string, task Task)
}

// NoopNodeExtension is a NodeExtension that does nothing, used when the
// host has no thread-local state to install.
type NoopNodeExtension struct{}

func (NoopNodeExtension) BeforeProcess(context.Context, string, Task) {}
func (NoopNodeExtension) AfterProcess(context.Context, string, Task)  {}

// noopOperationHandler discards every task handed to it. It exists as the
// worker loop's last line of defense against a task that reaches a
// partition worker with an out-of-range partition id; Execute is
// responsible for rejecting such tasks before they are ever enqueued, so
// this path should be unreachable in practice.
type noopOperationHandler struct{}

func (noopOperationHandler) Process(context.Context, Task) error { return nil }
func (noopOperationHandler) CurrentTask() (Task, bool)           { return nil, false }
