package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	IdentityConfig
	OnboardingConfig
	ServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetLogPretty() bool
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Identity
	Onboarding
	Server
}

var _ Config = (*mainConfig)(nil)

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads the configuration using the given lookuper (tests use
// envconfig.MapLookuper).
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var c mainConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &c,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("[config.Load] %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("[config.Load] %w", err)
	}
	return &c, nil
}

func (c *mainConfig) validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory, StorageDriverSQLite, StorageDriverRedis:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.OnboardingValidation {
	case "lenient", "strict":
	default:
		return fmt.Errorf("unknown ONBOARDING_VALIDATION %q", c.OnboardingValidation)
	}
	return nil
}

type EnvVars struct {
	AppName   string `env:"APP_NAME, default=Interiors Auth"`
	Env       string `env:"ENV, default=DEV"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string  { return e.AppName }
func (e EnvVars) GetEnv() string      { return e.Env }
func (e EnvVars) GetLogLevel() string { return e.LogLevel }
func (e EnvVars) GetLogPretty() bool  { return e.LogPretty }
