package config

import "time"

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetRetryMaxTries() uint
	GetRetryInitialInterval() time.Duration
}

type API struct {
	BaseURL              string        `env:"API_BASE_URL, default=http://localhost:8080"`
	Timeout              time.Duration `env:"API_TIMEOUT, default=30s"`
	RetryMaxTries        uint          `env:"API_RETRY_MAX_TRIES, default=3"`
	RetryInitialInterval time.Duration `env:"API_RETRY_INITIAL_INTERVAL, default=500ms"`
}

var _ APIConfig = API{}

func (a API) GetAPIBaseURL() string                  { return a.BaseURL }
func (a API) GetAPITimeout() time.Duration           { return a.Timeout }
func (a API) GetRetryMaxTries() uint                 { return a.RetryMaxTries }
func (a API) GetRetryInitialInterval() time.Duration { return a.RetryInitialInterval }
