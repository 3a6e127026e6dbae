// Package gridhandlers provides the OperationHandlerFactory and concrete
// OperationHandler implementations a running grid node installs into
// opsched.Scheduler: an in-memory per-partition key/value store, an
// ad-hoc handler for inline requests, and a response-packet handler.
package gridhandlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/opsched/internal/opsched"
)

// KVOperation is the payload carried by opsched.Operation.Payload for a
// key/value mutation or read.
type KVOperation struct {
	Key   string
	Value string
	// IsRead, when true, makes this a lookup rather than a mutation; the
	// result is stashed on Result for the caller to read back after the
	// operation completes.
	IsRead bool
	Result chan string
}

// KVHandler is an OperationHandler bound to a single partition. Because
// the scheduler guarantees only one goroutine ever calls Process for a
// given partition (the affinity invariant), the map needs no locking of
// its own.
type KVHandler struct {
	partitionID int
	data        map[string]string

	mu      sync.Mutex
	current opsched.Task

	logger *slog.Logger
}

// NewKVHandler builds the handler for partition partitionID.
func NewKVHandler(partitionID int, logger *slog.Logger) *KVHandler {
	return &KVHandler{
		partitionID: partitionID,
		data:        make(map[string]string),
		logger:      logger.With("component", "kv", "partition", partitionID),
	}
}

func (h *KVHandler) Process(ctx context.Context, task opsched.Task) error {
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
		op, ok := t.Payload.(*KVOperation)
		if !ok {
			return fmt.Errorf("gridhandlers: unrecognized operation payload %T", t.Payload)
		}
		if op.IsRead {
			v := h.data[op.Key]
			if op.Result != nil {
				op.Result <- v
			}
			return nil
		}
		h.data[op.Key] = op.Value
		if op.Result != nil {
			op.Result <- op.Value
		}
		return nil

	case *opsched.PartitionRunnable:
		if t.Run != nil {
			t.Run()
		}
		return nil

	default:
		return fmt.Errorf("gridhandlers: unrecognized task type %T for partition handler", task)
	}
}

func (h *KVHandler) CurrentTask() (opsched.Task, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, false
	}
	return h.current, true
}
