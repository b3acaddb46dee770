package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRoute(http.MethodGet, RouteHealth, s.HealthHandler)
	s.RegisterRoute(http.MethodGet, RouteMetrics, echo.WrapHandler(promhttp.Handler()))

	s.RegisterRoute(http.MethodPost, RouteRegister, s.RegisterHandler)
	s.RegisterRoute(http.MethodPost, RouteLogin, s.LoginHandler)

	// Session token or, for the profile lookup only, an identity token
	s.RegisterRoute(http.MethodGet, RouteProfile, s.ProfileHandler, s.RequireBearer(true))
	s.RegisterRoute(http.MethodPut, RouteUpdateRole, s.UpdateRoleHandler, s.RequireBearer(false))
	s.RegisterRoute(http.MethodPost, RouteCompleteRegistration, s.CompleteRegistrationHandler, s.RequireBearer(false))
}

func (s *Server) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
