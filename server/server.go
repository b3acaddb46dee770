// Package server is a development implementation of the backend auth API.
// It keeps users in memory and issues HS256 session tokens, so the client
// can be exercised end to end without the production backend.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/token/jwt"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const tokenIssuer = "interiors-dev-backend"

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	echo   *echo.Echo
	routes []string
	config config.Config
	users  users.Repo
	tokens *jwt.Creator
	log    zerolog.Logger
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

func New(cfg config.Config, userRepo users.Repo, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if userRepo == nil {
		return nil, errors.New("[server.New] user repo is required")
	}
	creator, err := jwt.NewCreator(cfg.GetJWTSecret(), cfg.GetSessionTokenTTL(), tokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("[server.New] failed to create token creator: %w", err)
	}

	s := &Server{
		env:    cfg.GetEnv(),
		echo:   echo.New(),
		config: cfg,
		users:  userRepo,
		tokens: creator,
		log:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = NewValidator()
	s.echo.HTTPErrorHandler = NewHTTPErrorHandler(s.log)
	s.echo.Use(s.RecoverMiddleware, s.RequestIDMiddleware, s.LoggingMiddleware)

	if err := s.InitialiseSystem(); err != nil {
		return nil, fmt.Errorf("[server.New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) RegisterRoute(method, path string, handler echo.HandlerFunc, mw ...echo.MiddlewareFunc) {
	s.routes = append(s.routes, method+" "+path)
	s.echo.Add(method, path, handler, mw...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, _ := strings.Cut(route, " ")
		s.log.Info().Msg(formatRoute(method, path))
	}
}

func formatRoute(method, path string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s] %s", color+paddedMethod+ResetColor, path)
}
