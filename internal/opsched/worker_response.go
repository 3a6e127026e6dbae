package opsched

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/me/opsched/internal/threadid"
)

// responseWorker is the single goroutine that processes ResponsePacket
// tasks. Keeping response handling off the partition and generic pools
// means a slow or backed-up response handler can never stall partition
// affinity (§3 invariant: response traffic is isolated from operation
// traffic).
type responseWorker struct {
	normal *normalQueue

	handler ResponsePacketHandler

	processedCount atomic.Int64
	logger         *slog.Logger

	running atomic.Bool
	done    chan struct{}
}

func newResponseWorker(handler ResponsePacketHandler, logger *slog.Logger) *responseWorker {
	w := &responseWorker{
		normal:  newNormalQueue(),
		handler: handler,
		logger:  logger.With("worker", "response"),
		done:    make(chan struct{}),
	}
	w.running.Store(true)
	return w
}

func (w *responseWorker) start() {
	go w.run()
}

func (w *responseWorker) run() {
	threadid.Register(threadid.Descriptor{Kind: threadid.ResponseWorker})
	defer threadid.Unregister()
	defer close(w.done)

	w.logger.Debug("response worker started")
	for w.running.Load() {
		task, ok := w.normal.Dequeue()
		if !ok {
			break
		}
		if isTrigger(task) {
			continue
		}
		packet, ok := task.(*ResponsePacket)
		if !ok {
			w.logger.Error("non-response task reached response worker", "task", task)
			continue
		}
		w.process(packet)
	}
	w.logger.Debug("response worker stopped")
}

func (w *responseWorker) process(packet *ResponsePacket) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("response handler panic", "error", &WorkerFault{Worker: "response", Value: r})
		}
	}()
	if err := w.handler.Handle(ctx, packet); err != nil {
		w.logger.Error("response handler returned error", "error", err)
	}
	w.processedCount.Add(1)
}

func (w *responseWorker) stop() {
	w.running.Store(false)
	w.normal.Close()
}

func (w *responseWorker) pendingCount() int {
	return w.normal.Size()
}
