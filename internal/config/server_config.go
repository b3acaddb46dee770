package config

import (
	"fmt"
	"time"
)

type ServerConfig interface {
	GetPort() string
	GetJWTSecret() string
	GetSessionTokenTTL() time.Duration
}

type Server struct {
	Port            string        `env:"SERVER_PORT, default=8080"`
	JWTSecret       string        `env:"SERVER_JWT_SECRET, default=dev-secret-change-me"`
	SessionTokenTTL time.Duration `env:"SERVER_TOKEN_TTL, default=1h"`
}

var _ ServerConfig = Server{}

func (s Server) GetPort() string {
	port := s.Port
	if port == "" || port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (s Server) GetJWTSecret() string              { return s.JWTSecret }
func (s Server) GetSessionTokenTTL() time.Duration { return s.SessionTokenTTL }
