package server

import (
	"encoding/json"
	"net/http"

	"github.com/me/opsched/internal/gridhandlers"
	"github.com/me/opsched/internal/opsched"
	"github.com/me/opsched/pkg/api"
)

// handleSubmitOperation accepts a key/value operation and dispatches it
// to the scheduler. POST /api/v1/operations.
func (s *Server) handleSubmitOperation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req api.OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, api.NewInvalidArgumentError("malformed request body: "+err.Error()))
		return
	}
	if req.Key == "" {
		respondError(w, reqID, http.StatusBadRequest, api.NewInvalidArgumentError("key must not be empty"))
		return
	}

	op := &opsched.Operation{
		PartitionID_: req.PartitionID,
		Urgent_:      req.Urgent,
		Payload: &gridhandlers.KVOperation{
			Key:   req.Key,
			Value: req.Value,
		},
	}

	if err := s.sched.Execute(op); err != nil {
		respondError(w, reqID, http.StatusBadRequest, api.NewInvalidArgumentError(err.Error()))
		return
	}

	respondAccepted(w, reqID, api.OperationResult{
		PartitionID: req.PartitionID,
		Key:         req.Key,
		Accepted:    true,
	})
}
