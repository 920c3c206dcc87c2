package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the HTTP server and blocks until an interrupt or terminate
// signal arrives, then shuts everything down gracefully.
func (s *Server) Start(addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.subscribeEvents(ctx)

	if err := s.library.StartWatcher(ctx, s.Cfg.GetHotReload()); err != nil {
		slog.Error("Failed to start script watcher", "error", err)
	}

	go func() {
		if err := s.E.Start(addr); err != nil && err != http.ErrServerClosed {
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()

	waitForShutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.E.Shutdown(shutdownCtx); err != nil {
		s.E.Logger.Fatal(err)
	}
	s.Shutdown(shutdownCtx)
}

// Shutdown releases every long-lived resource: the interpreter pool, the
// stores, the event bus and the script watcher.
func (s *Server) Shutdown(ctx context.Context) {
	s.library.StopWatcher()

	if err := s.runtime.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down execution runtime", "error", err)
	}
	if err := s.sessions.Close(); err != nil {
		slog.Error("Failed to close session store", "error", err)
	}
	if err := s.history.Close(); err != nil {
		slog.Error("Failed to close history store", "error", err)
	}
	if err := s.bus.Close(); err != nil {
		slog.Error("Failed to close event bus", "error", err)
	}
	_ = s.injector.Shutdown()
}

// waitForShutdown blocks until an interrupt or terminate signal is received.
func waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
}
