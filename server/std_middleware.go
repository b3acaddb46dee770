package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const headerRequestID = "X-Request-ID"

// RequestIDMiddleware echoes the client's request ID, minting one if absent.
func (s *Server) RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(headerRequestID, id)
		c.Set(headerRequestID, id)
		return next(c)
	}
}

func (s *Server) LoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Render now so the logged status is the one the client sees.
			c.Error(err)
		}
		if s.env != "DEV" {
			return nil
		}
		req := c.Request()
		s.log.Debug().
			Str("request_id", fmt.Sprint(c.Get(headerRequestID))).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Msg(formatRoute(req.Method, req.URL.Path))
		return nil
	}
}

func (s *Server) RecoverMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Str("path", c.Request().URL.Path).Msg("recovered from panic")
				err = newAPIError(http.StatusInternalServerError, CodeInternal, "internal server error")
			}
		}()
		return next(c)
	}
}
