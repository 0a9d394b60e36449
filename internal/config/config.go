package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Addr      string `env:"ADDR,default=:8080"`
	DBDSN     string `env:"DB_DSN"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`

	RedisAddr       string        `env:"REDIS_ADDR"`
	PreviewCacheTTL time.Duration `env:"PREVIEW_CACHE_TTL,default=30s"`

	AutoMigrate      bool `env:"AUTO_MIGRATE,default=true"`
	WSSendQueue      int  `env:"WS_SEND_QUEUE,default=256"`
	MaxContentLength int  `env:"MAX_CONTENT_LENGTH,default=4000"`
	PreviewSize      int  `env:"PREVIEW_SIZE,default=5"`

	// Comma-separated; empty accepts any origin.
	WSAllowedOrigins string `env:"WS_ALLOWED_ORIGINS"`

	// Development accounts created at startup, "email:name,email:name".
	SeedUsers    string `env:"SEED_USERS"`
	SeedPassword string `env:"SEED_PASSWORD,default=chatsync-dev"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is not set")
	}
	if c.WSSendQueue <= 0 {
		return fmt.Errorf("config: WS_SEND_QUEUE must be positive, got %d", c.WSSendQueue)
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("config: MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	}
	if c.PreviewSize <= 0 {
		return fmt.Errorf("config: PREVIEW_SIZE must be positive, got %d", c.PreviewSize)
	}
	return nil
}

// UseDatabase reports whether a PostgreSQL DSN was configured.
func (c Config) UseDatabase() bool { return strings.TrimSpace(c.DBDSN) != "" }

// UseRedis reports whether the preview cache is enabled.
func (c Config) UseRedis() bool { return strings.TrimSpace(c.RedisAddr) != "" }

// AllowedOrigins splits WS_ALLOWED_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.WSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
