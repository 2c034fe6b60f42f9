package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.E.GET("/ws", s.gateway.Handler())
	s.E.GET("/healthz", s.health)
	s.E.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"online": len(s.registry.OnlineUsers()),
	})
}
