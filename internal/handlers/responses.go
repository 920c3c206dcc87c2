package handlers

import (
	"time"

	"github.com/nfrund/sandscript/internal/history"
	"github.com/nfrund/sandscript/internal/sandbox"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecuteResponse is the DTO for a completed script run.
type ExecuteResponse struct {
	ExecutionID  string          `json:"execution_id"`
	Success      bool            `json:"success"`
	Result       string          `json:"result,omitempty"`
	Formatted    string          `json:"formatted,omitempty"`
	ContentType  string          `json:"content_type,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	ExitCode     int             `json:"exit_code"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Metrics      MetricsResponse `json:"metrics"`
}

// MetricsResponse carries the per-run performance numbers.
type MetricsResponse struct {
	CompilationMs    int64 `json:"compilation_ms"`
	ExecutionMs      int64 `json:"execution_ms"`
	CommandsExecuted int64 `json:"commands_executed"`
	MemoryUsedBytes  int64 `json:"memory_used_bytes"`
}

// NewExecuteResponse creates an ExecuteResponse DTO from a sandbox result.
func NewExecuteResponse(res *sandbox.Result) *ExecuteResponse {
	out := &ExecuteResponse{
		ExecutionID:  res.ExecutionID,
		Success:      res.Success,
		Result:       res.Result,
		ErrorMessage: res.ErrorMessage,
		ExitCode:     res.ExitCode,
		StartTime:    res.StartTime,
		EndTime:      res.EndTime,
		Metrics: MetricsResponse{
			CompilationMs:    res.Metrics.CompilationTime.Milliseconds(),
			ExecutionMs:      res.Metrics.ExecutionTime.Milliseconds(),
			CommandsExecuted: res.Metrics.CommandsExecuted,
			MemoryUsedBytes:  res.Metrics.MemoryUsedBytes,
		},
	}
	if res.Formatted != nil {
		out.Formatted = res.Formatted.Content
		out.ContentType = res.Formatted.ContentType
	}
	return out
}

// HistoryEntryResponse is the DTO for one execution history entry.
type HistoryEntryResponse struct {
	ExecutionID  string    `json:"execution_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Script       string    `json:"script,omitempty"`
	Result       string    `json:"result,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	Success      bool      `json:"success"`
	StartTime    time.Time `json:"start_time"`
	DurationMs   int64     `json:"duration_ms"`
}

// NewHistoryEntryResponse creates a HistoryEntryResponse DTO from a history entry.
func NewHistoryEntryResponse(e history.Entry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ExecutionID:  e.ExecutionID,
		SessionID:    e.SessionID,
		Script:       e.Script,
		Result:       e.Result,
		ErrorMessage: e.ErrorMessage,
		Success:      e.Success,
		StartTime:    e.StartTime,
		DurationMs:   e.Duration.Milliseconds(),
	}
}

// SessionValueResponse is the DTO for a single session key read.
type SessionValueResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PoolStatsResponse reports interpreter pool occupancy.
type PoolStatsResponse struct {
	Idle      int   `json:"idle"`
	Active    int   `json:"active"`
	Created   int64 `json:"created"`
	Destroyed int64 `json:"destroyed"`
}
