package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do/v2"

	"github.com/nfrund/sandscript/internal/config"
	"github.com/nfrund/sandscript/internal/handlers"
	"github.com/nfrund/sandscript/internal/history"
	"github.com/nfrund/sandscript/internal/logging"
	"github.com/nfrund/sandscript/internal/pubsub"
	"github.com/nfrund/sandscript/internal/sandbox"
	"github.com/nfrund/sandscript/internal/scripts"
	"github.com/nfrund/sandscript/internal/session"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	Cfg      config.Provider
	injector do.Injector

	runtime  *sandbox.Runtime
	sessions session.Store
	history  *history.Store
	library  *scripts.Registry
	bus      *pubsub.WatermillBridge

	executionHandler *handlers.ExecutionHandler
	sessionHandler   *handlers.SessionHandler
	scriptsHandler   *handlers.ScriptsHandler
	healthHandler    *handlers.HealthHandler
}

// New creates a new Server instance with all dependencies wired.
func New() *Server {
	logging.New() // Initialize the structured logger
	cfg := config.New()
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Server against an explicit configuration, useful
// for testing.
func NewWithConfig(cfg config.Provider) *Server {
	injector := newKernel(cfg)

	runtime := do.MustInvoke[*sandbox.Runtime](injector)
	sessions := do.MustInvoke[session.Store](injector)
	hist := do.MustInvoke[*history.Store](injector)
	library := do.MustInvoke[*scripts.Registry](injector)
	bus := do.MustInvoke[*pubsub.WatermillBridge](injector)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Validator = handlers.NewValidator()

	s := &Server{
		E:        e,
		Cfg:      cfg,
		injector: injector,

		runtime:  runtime,
		sessions: sessions,
		history:  hist,
		library:  library,
		bus:      bus,

		executionHandler: handlers.NewExecutionHandler(runtime, library),
		sessionHandler:   handlers.NewSessionHandler(sessions),
		scriptsHandler:   handlers.NewScriptsHandler(library),
		healthHandler:    handlers.NewHealthHandler(),
	}
	s.registerRoutes()
	return s
}

// Runtime is a getter for the execution runtime, useful for testing.
func (s *Server) Runtime() *sandbox.Runtime {
	return s.runtime
}

// Sessions is a getter for the session store, useful for testing.
func (s *Server) Sessions() session.Store {
	return s.sessions
}
