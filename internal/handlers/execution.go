package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/sandscript/internal/format"
	"github.com/nfrund/sandscript/internal/history"
	"github.com/nfrund/sandscript/internal/sandbox"
	"github.com/nfrund/sandscript/internal/scripts"
)

// ExecutionHandler handles HTTP requests for script execution and history.
type ExecutionHandler struct {
	runtime *sandbox.Runtime
	library *scripts.Registry
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(runtime *sandbox.Runtime, library *scripts.Registry) *ExecutionHandler {
	return &ExecutionHandler{runtime: runtime, library: library}
}

// Execute runs a script. The script body comes inline or by library name.
// Script-level failures are reported with HTTP 200 and success=false; only
// malformed requests are HTTP errors.
func (h *ExecutionHandler) Execute(c echo.Context) error {
	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	script := req.Script
	if script == "" {
		s, ok := h.library.Get(req.ScriptName)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("script %q not found in library", req.ScriptName))
		}
		script = s.Content
	}

	level, err := sandbox.ParseTrustLevel(req.TrustLevel)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	outputFormat, err := format.ParseFormat(req.OutputFormat)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	variables := make(map[string]interface{}, len(req.Variables))
	for k, v := range req.Variables {
		variables[k] = v
	}

	res := h.runtime.Execute(c.Request().Context(), sandbox.Request{
		Script:               script,
		Variables:            variables,
		SessionID:            req.SessionID,
		TrustLevel:           level,
		Timeout:              time.Duration(req.TimeoutSeconds) * time.Second,
		OutputFormat:         outputFormat,
		ImportedPackages:     req.ImportedPackages,
		WorkingDirectory:     req.WorkingDirectory,
		EnvironmentVariables: req.EnvironmentVariables,
	})

	return c.JSON(http.StatusOK, NewExecuteResponse(res))
}

// History lists past executions, newest first. Query parameters: session_id,
// limit, detailed.
func (h *ExecutionHandler) History(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	detailed, _ := strconv.ParseBool(c.QueryParam("detailed"))

	entries, err := h.runtime.History().Find(c.Request().Context(), history.Query{
		SessionID: c.QueryParam("session_id"),
		Limit:     limit,
		Detailed:  detailed,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to query execution history")
	}

	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewHistoryEntryResponse(e))
	}
	return c.JSON(http.StatusOK, out)
}

// PoolStats reports interpreter pool occupancy.
func (h *ExecutionHandler) PoolStats(c echo.Context) error {
	stats := h.runtime.PoolStats()
	return c.JSON(http.StatusOK, PoolStatsResponse{
		Idle:      stats.Idle,
		Active:    stats.Active,
		Created:   stats.Created,
		Destroyed: stats.Destroyed,
	})
}
