// Package config reads process settings from the environment, after an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDev        Environment = "dev"
	EnvProduction Environment = "production"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App struct {
		Env      Environment `env:"APP_ENV" envDefault:"local"`
		Port     string      `env:"PORT" envDefault:"50051"`
		WebPort  string      `env:"WEB_PORT"`
		LogLevel string      `env:"LOG_LEVEL" envDefault:"info"`
	}

	Store struct {
		Driver      string `env:"STORE_DRIVER" envDefault:"sqlite"`
		SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/clinic.db"`
		DatabaseURL string `env:"DATABASE_URL"`
	}

	Auth struct {
		SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`
		LoginRPS   float64       `env:"LOGIN_RATE_RPS" envDefault:"5"`
		LoginBurst int           `env:"LOGIN_RATE_BURST" envDefault:"10"`
	}

	NATS struct {
		URL string `env:"NATS_URL"`
	}

	Seed struct {
		AdminEmail    string `env:"SEED_ADMIN_EMAIL"`
		AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
		AdminName     string `env:"SEED_ADMIN_NAME" envDefault:"Administrator"`
	}
}

// Load reads files (default .env) if present, then parses the environment.
// Missing files are not an error.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.App.Env = Environment(strings.ToLower(string(cfg.App.Env)))
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Auth.SessionTTL)
	}
	if (c.Seed.AdminEmail == "") != (c.Seed.AdminPassword == "") {
		return fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together")
	}
	return nil
}
