package server

import (
	"net/http"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/me/opsched/pkg/api"
)

func (s *Server) snapshot() api.MetricsSnapshot {
	return api.MetricsSnapshot{
		Timestamp:                          time.Now().UTC(),
		PartitionThreadCount:               s.sched.PartitionThreadCount(),
		GenericThreadCount:                 s.sched.GenericThreadCount(),
		RunningOperationCount:              s.sched.RunningOperationCount(),
		OperationExecutorQueueSize:         s.sched.OperationExecutorQueueSize(),
		PriorityOperationExecutorQueueSize: s.sched.PriorityOperationExecutorQueueSize(),
		ResponseQueueSize:                  s.sched.ResponseQueueSize(),
	}
}

// handleMetrics returns a single JSON snapshot of the scheduler's live
// counters. GET /api/v1/metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, s.snapshot())
}

// handleMetricsDump writes the scheduler's plain-text performance dump
// (queue depths and processed-task counts per worker) directly to the
// response body. GET /api/v1/metrics/dump.
func (s *Server) handleMetricsDump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	snap := s.snapshot()
	w.Write([]byte("queued operations: " + humanize.Comma(int64(snap.OperationExecutorQueueSize)) + "\n"))
	s.sched.DumpPerformanceMetrics(w)
}
