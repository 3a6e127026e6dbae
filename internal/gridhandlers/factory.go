package gridhandlers

import (
	"log/slog"

	"github.com/me/opsched/internal/opsched"
)

// Factory builds the handler table for a grid node: one KVHandler per
// partition, one AdHocHandler per generic worker, and a single ad-hoc
// handler for inline calls from I/O threads.
type Factory struct {
	logger *slog.Logger
}

// NewFactory builds an in-memory handler factory.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{logger: logger}
}

func (f *Factory) CreatePartitionHandler(partitionID int) opsched.OperationHandler {
	return NewKVHandler(partitionID, f.logger)
}

func (f *Factory) CreateGenericOperationHandler() opsched.OperationHandler {
	return NewAdHocHandler(f.logger)
}

func (f *Factory) CreateAdHocOperationHandler() opsched.OperationHandler {
	return NewAdHocHandler(f.logger)
}
