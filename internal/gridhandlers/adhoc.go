package gridhandlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/opsched/internal/opsched"
)

// AdHocHandler runs partition-less operations on a generic worker, or
// inline via Scheduler.RunOnCallingThread from an I/O thread. It keeps no
// state of its own beyond the currently executing task.
type AdHocHandler struct {
	mu      sync.Mutex
	current opsched.Task
	logger  *slog.Logger
}

func NewAdHocHandler(logger *slog.Logger) *AdHocHandler {
	return &AdHocHandler{logger: logger.With("component", "adhoc")}
}

func (h *AdHocHandler) Process(ctx context.Context, task opsched.Task) error {
	h.mu.Lock()
	h.current = task
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.current = nil
		h.mu.Unlock()
	}()

	switch t := task.(type) {
	case *opsched.Operation:
		if op, ok := t.Payload.(*KVOperation); ok && op.Result != nil {
			op.Result <- op.Value
		}
		return nil
	case *opsched.PartitionRunnable:
		if t.Run != nil {
			t.Run()
		}
		return nil
	default:
		return fmt.Errorf("gridhandlers: unrecognized task type %T for ad-hoc handler", task)
	}
}

func (h *AdHocHandler) CurrentTask() (opsched.Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}
