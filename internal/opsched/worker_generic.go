package opsched

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/me/opsched/internal/threadid"
)

// genericWorker runs tasks with no partition affinity: generic operations
// and ad-hoc submissions that were routed to the shared pool rather than a
// specific partition. normal and priority are shared across every
// genericWorker in the pool (the same two queue instances are passed to
// every worker at construction time), so any generic worker may pick up
// any such task the moment it's free — work-stealing falls out for free
// because there's nothing to steal from, only one pair of queues every
// worker drains (§3, §4.3).
type genericWorker struct {
	name     string
	threadID int

	normal   *normalQueue
	priority *priorityQueue

	handler OperationHandler

	current        currentHandlerSlot
	processedCount atomic.Int64

	ext    NodeExtension
	logger *slog.Logger

	running atomic.Bool
	done    chan struct{}
}

func newGenericWorker(threadID int, name string, handler OperationHandler, normal *normalQueue, priority *priorityQueue, ext NodeExtension, logger *slog.Logger) *genericWorker {
	w := &genericWorker{
		name:     name,
		threadID: threadID,
		normal:   normal,
		priority: priority,
		handler:  handler,
		ext:      ext,
		logger:   logger.With("worker", name),
		done:     make(chan struct{}),
	}
	w.running.Store(true)
	return w
}

func (w *genericWorker) start() {
	go w.run()
}

func (w *genericWorker) run() {
	threadid.Register(threadid.Descriptor{Kind: threadid.GenericWorker, ID: w.threadID})
	defer threadid.Unregister()
	defer close(w.done)

	w.logger.Debug("generic worker started")
	for w.running.Load() {
		task, ok := w.priority.TryDequeue()
		if !ok {
			task, ok = w.normal.Dequeue()
			if !ok {
				break
			}
		}
		if isTrigger(task) {
			continue
		}
		w.process(task)
	}
	w.logger.Debug("generic worker stopped")
}

func (w *genericWorker) process(task Task) {
	ctx := context.Background()

	w.current.set(w.handler)
	w.ext.BeforeProcess(ctx, w.name, task)

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("handler panic", "error", &WorkerFault{Worker: w.name, Value: r})
			}
		}()
		if err := w.handler.Process(ctx, task); err != nil {
			w.logger.Error("handler returned error", "error", err)
		}
	}()

	w.ext.AfterProcess(ctx, w.name, task)
	w.current.clear()
	w.processedCount.Add(1)
}

// stop only flips the running flag; it does not close the queue, since
// normal is shared by every worker in the pool and is closed once by
// Scheduler.Shutdown after every generic worker has been asked to stop.
func (w *genericWorker) stop() {
	w.running.Store(false)
}
