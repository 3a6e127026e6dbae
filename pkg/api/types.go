// Package api holds the wire types shared between the grid node's HTTP
// surface and the gridctl client.
package api

import "time"

// Response is the standard envelope every JSON endpoint returns.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError is the error shape nested in Response.Error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewInternalError(msg string) *APIError {
	return &APIError{Code: "internal_error", Message: msg}
}

func NewInvalidArgumentError(msg string) *APIError {
	return &APIError{Code: "invalid_argument", Message: msg}
}

func NewNotFoundError(kind, id string) *APIError {
	return &APIError{Code: "not_found", Message: kind + " " + id + " not found"}
}

// OperationRequest is the body of POST /api/v1/operations: submit a
// key/value mutation against a partition, or a partition-less operation
// when PartitionID is negative. An omitted partition_id decodes as 0 and
// targets partition 0.
type OperationRequest struct {
	PartitionID int    `json:"partition_id"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	Urgent      bool   `json:"urgent"`
}

// OperationResult is returned from POST /api/v1/operations once the
// operation has been accepted (not necessarily completed) by the
// scheduler.
type OperationResult struct {
	PartitionID int    `json:"partition_id"`
	Key         string `json:"key"`
	Accepted    bool   `json:"accepted"`
}

// MetricsSnapshot mirrors Scheduler's live counters for JSON and SSE
// consumers.
type MetricsSnapshot struct {
	Timestamp                          time.Time `json:"timestamp"`
	PartitionThreadCount               int       `json:"partition_thread_count"`
	GenericThreadCount                 int       `json:"generic_thread_count"`
	RunningOperationCount              int       `json:"running_operation_count"`
	OperationExecutorQueueSize         int       `json:"operation_executor_queue_size"`
	PriorityOperationExecutorQueueSize int       `json:"priority_operation_executor_queue_size"`
	ResponseQueueSize                  int       `json:"response_queue_size"`
}

// HealthResponse is returned from GET /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
}
