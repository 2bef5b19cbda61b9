package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel                  string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr                string        `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr                 string        `env:"ADMIN_ADDR" envDefault:":9091"`
	PostgresURL               string        `env:"POSTGRES_URL,required"`
	RedisAddr                 string        `env:"REDIS_ADDR,required"`
	JWTSecret                 string        `env:"JWT_SECRET,required"`
	SessionMarkerTTL          time.Duration `env:"SESSION_MARKER_TTL" envDefault:"12h"`
	ImpersonationStartsPerMin int           `env:"IMPERSONATION_STARTS_PER_MIN" envDefault:"10"`
	ShutdownTimeout           time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
