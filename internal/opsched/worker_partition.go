package opsched

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/me/opsched/internal/threadid"
)

// partitionWorker is a long-lived goroutine that owns threadId = p mod P
// for every partition p. It is the only goroutine ever permitted to run
// tasks for those partitions (the affinity invariant, §3 invariant 1).
type partitionWorker struct {
	name     string
	threadID int

	normal   *normalQueue
	priority *priorityQueue

	// handlers is the shared, immutable partition handler table; this
	// worker only ever touches handlers[p] where p mod P == threadID.
	handlers []OperationHandler

	current        currentHandlerSlot
	processedCount atomic.Int64

	ext    NodeExtension
	logger *slog.Logger

	running atomic.Bool
	done    chan struct{}
}

func newPartitionWorker(threadID int, name string, handlers []OperationHandler, ext NodeExtension, logger *slog.Logger) *partitionWorker {
	w := &partitionWorker{
		name:     name,
		threadID: threadID,
		normal:   newNormalQueue(),
		priority: newPriorityQueue(),
		handlers: handlers,
		ext:      ext,
		logger:   logger.With("worker", name),
		done:     make(chan struct{}),
	}
	w.running.Store(true)
	return w
}

func (w *partitionWorker) start() {
	go w.run()
}

func (w *partitionWorker) run() {
	threadid.Register(threadid.Descriptor{Kind: threadid.PartitionWorker, ID: w.threadID})
	defer threadid.Unregister()
	defer close(w.done)

	w.logger.Debug("partition worker started")
	for w.running.Load() {
		// Drain the priority queue fully before each normal dequeue
		// attempt (§4.2) so a burst of priority work can't be starved.
		task, ok := w.priority.TryDequeue()
		if !ok {
			task, ok = w.normal.Dequeue()
			if !ok {
				// Queue closed during shutdown.
				break
			}
		}
		if isTrigger(task) {
			continue
		}
		w.process(task)
	}
	w.logger.Debug("partition worker stopped")
}

func (w *partitionWorker) process(task Task) {
	ctx := context.Background()
	handler := w.handlerFor(task)

	w.current.set(handler)
	w.ext.BeforeProcess(ctx, w.name, task)

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("handler panic", "error", &WorkerFault{Worker: w.name, Value: r})
			}
		}()
		if err := handler.Process(ctx, task); err != nil {
			w.logger.Error("handler returned error", "error", err)
		}
	}()

	w.ext.AfterProcess(ctx, w.name, task)
	w.current.clear()
	w.processedCount.Add(1)
}

// handlerFor resolves the handler table entry for task. Execute already
// rejects an out-of-range partition id before a task ever reaches a
// queue, but a worker must never trust a raw index from the task itself:
// an id outside [0, len(handlers)) here is a scheduler bug, not a client
// error, so it's logged and discarded via a no-op handler rather than
// indexing out of bounds.
func (w *partitionWorker) handlerFor(task Task) OperationHandler {
	id := task.PartitionID()
	if id < 0 || id >= len(w.handlers) {
		w.logger.Error("task reached worker with out-of-range partition id", "partitionID", id)
		return noopOperationHandler{}
	}
	return w.handlers[id]
}

func (w *partitionWorker) stop() {
	w.running.Store(false)
	w.normal.Close()
}

func (w *partitionWorker) pendingCount() int {
	return w.normal.Size()
}
