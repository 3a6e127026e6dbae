package gridhandlers

import (
	"context"
	"log/slog"

	"github.com/me/opsched/internal/opsched"
)

// ResponseHandler logs every response packet it receives. A real grid
// node would correlate the packet with an in-flight invocation future and
// complete it; this demo node only needs to prove responses are isolated
// from operation traffic, so it just observes them.
type ResponseHandler struct {
	logger *slog.Logger
}

func NewResponseHandler(logger *slog.Logger) *ResponseHandler {
	return &ResponseHandler{logger: logger.With("component", "response")}
}

func (h *ResponseHandler) Handle(ctx context.Context, packet *opsched.ResponsePacket) error {
	h.logger.Debug("response received", "partition", packet.PartitionID(), "bytes", len(packet.Payload))
	return nil
}
