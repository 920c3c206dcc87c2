package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/sandscript/internal/session"
)

// SessionHandler exposes session-scoped key/value state over HTTP.
type SessionHandler struct {
	store session.Store
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// GetValue reads one key from a session. A missing key is 404.
func (h *SessionHandler) GetValue(c echo.Context) error {
	sessionID := c.Param("id")
	key := c.Param("key")

	value, ok, err := h.store.Get(c.Request().Context(), sessionID, key)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read session value")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("key %q not found in session", key))
	}
	return c.JSON(http.StatusOK, SessionValueResponse{Key: key, Value: value})
}

// SetValue writes one key into a session.
func (h *SessionHandler) SetValue(c echo.Context) error {
	sessionID := c.Param("id")
	key := c.Param("key")

	var req SetSessionValueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.Set(c.Request().Context(), sessionID, key, req.Value); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to write session value")
	}
	return c.JSON(http.StatusOK, SessionValueResponse{Key: key, Value: req.Value})
}

// ListKeys returns every key present in a session.
func (h *SessionHandler) ListKeys(c echo.Context) error {
	sessionID := c.Param("id")

	keys, err := h.store.List(c.Request().Context(), sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list session keys")
	}
	return c.JSON(http.StatusOK, keys)
}

// DeleteValue removes one key from a session. Deleting an absent key is a
// no-op, not an error.
func (h *SessionHandler) DeleteValue(c echo.Context) error {
	sessionID := c.Param("id")
	key := c.Param("key")

	if err := h.store.Delete(c.Request().Context(), sessionID, key); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete session value")
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear removes every key in a session.
func (h *SessionHandler) Clear(c echo.Context) error {
	sessionID := c.Param("id")

	if err := h.store.Clear(c.Request().Context(), sessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to clear session")
	}
	return c.NoContent(http.StatusNoContent)
}
