package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/sandscript/internal/scripts"
)

// ScriptsHandler exposes the script library over HTTP.
type ScriptsHandler struct {
	library *scripts.Registry
}

// NewScriptsHandler creates a new ScriptsHandler.
func NewScriptsHandler(library *scripts.Registry) *ScriptsHandler {
	return &ScriptsHandler{library: library}
}

// List returns metadata for every script in the library.
func (h *ScriptsHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.library.List())
}

// Get returns one script by name, including its content.
func (h *ScriptsHandler) Get(c echo.Context) error {
	name := c.Param("name")
	s, ok := h.library.Get(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "script not found")
	}
	return c.JSON(http.StatusOK, s)
}
