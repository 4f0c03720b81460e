// Package config loads server and admin settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `env:"ADDR,default=:5000"`
	WSAddr      string `env:"WS_ADDR"`
	MetricsAddr string `env:"METRICS_ADDR,default=:9090"`

	LobbyRoom string `env:"LOBBY_ROOM,default=lobby"`
	SpawnX    int    `env:"SPAWN_X,default=0"`
	SpawnY    int    `env:"SPAWN_Y,default=0"`
	SpawnDir  int    `env:"SPAWN_DIR,default=2"`

	OutboundBuffer int           `env:"OUTBOUND_BUFFER,default=64"`
	CommandRate    float64       `env:"COMMAND_RATE,default=50"`
	CommandBurst   int           `env:"COMMAND_BURST,default=20"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT,default=0s"`

	QueuePath       string        `env:"ADMIN_QUEUE_PATH,default=admin_actions.queue"`
	LedgerPath      string        `env:"ADMIN_LEDGER_PATH"`
	PollInterval    time.Duration `env:"ADMIN_POLL_INTERVAL,default=1s"`
	CleanupInterval time.Duration `env:"ADMIN_CLEANUP_INTERVAL,default=60s"`
	Retention       time.Duration `env:"ADMIN_RETENTION,default=5m"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR must not be empty"))
	}
	if c.LobbyRoom == "" {
		errs = append(errs, errors.New("LOBBY_ROOM must not be empty"))
	}
	if c.OutboundBuffer <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOUND_BUFFER must be positive, got %d", c.OutboundBuffer))
	}
	if c.CommandRate <= 0 || c.CommandBurst <= 0 {
		errs = append(errs, errors.New("COMMAND_RATE and COMMAND_BURST must be positive"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("IDLE_TIMEOUT must not be negative"))
	}
	if c.QueuePath == "" {
		errs = append(errs, errors.New("ADMIN_QUEUE_PATH must not be empty"))
	}
	if c.PollInterval <= 0 || c.CleanupInterval <= 0 || c.Retention <= 0 {
		errs = append(errs, errors.New("admin poll, cleanup and retention durations must be positive"))
	}
	return errors.Join(errs...)
}
