package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start runs the server until an interrupt or terminate signal, then
// shuts down gracefully: stop accepting, close the bus so fan-out
// drains, close the store.
func (s *Server) Start() {
	go func() {
		if err := s.E.Start(s.Cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	slog.Info("listening", "addr", s.Cfg.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.E.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	if err := s.bus.Close(); err != nil {
		slog.Error("bus close failed", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("store close failed", "error", err)
	}
}
