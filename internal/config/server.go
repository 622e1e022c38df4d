package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds process settings read from the environment
type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	DBPath         string        `env:"DB_PATH" envDefault:"dispatch.db"`
	CatalogPath    string        `env:"CATALOG_PATH" envDefault:"data/cards.json"`
	GameConfigPath string        `env:"GAME_CONFIG"`
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"2h"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	TrustProxy     bool          `env:"TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" envDefault:"65536"`
	TickInterval   time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads the server configuration from the environment
func LoadServer() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values env parsing cannot
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: PORT is empty", ErrInvalidConfig)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: TICK_INTERVAL must be positive", ErrInvalidConfig)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: TOKEN_TTL must be positive", ErrInvalidConfig)
	}
	return nil
}
