package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"pdfdark/converter"
)

// Config is the optional pdfdark.toml file, overridable from the environment
// and then from flags.
type Config struct {
	Render RenderConfig `toml:"render"`
	Pacing PacingConfig `toml:"pacing"`
	NATS   NATSConfig   `toml:"nats"`
	Log    LogConfig    `toml:"log"`
}

type RenderConfig struct {
	Renderer string `toml:"renderer"`
}

type PacingConfig struct {
	Delay string `toml:"delay"` // a Go duration, "0" disables
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

const (
	defaultConfigFile  = "pdfdark.toml"
	defaultNATSSubject = "pdfdark.progress"
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Render: RenderConfig{Renderer: converter.RendererFitz},
		Pacing: PacingConfig{Delay: converter.DefaultPacing.String()},
		NATS:   NATSConfig{Subject: defaultNATSSubject},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig layers the TOML file at path and the environment over the
// defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.Render.Renderer = getEnvOrDefault("PDFDARK_RENDERER", cfg.Render.Renderer)
	cfg.Pacing.Delay = getEnvOrDefault("PDFDARK_PACING", cfg.Pacing.Delay)
	cfg.NATS.URL = getEnvOrDefault("PDFDARK_NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getEnvOrDefault("PDFDARK_NATS_SUBJECT", cfg.NATS.Subject)
	cfg.Log.Level = getEnvOrDefault("PDFDARK_LOG_LEVEL", cfg.Log.Level)

	return cfg, nil
}

// PacingDelay parses the configured delay.
func (c Config) PacingDelay() (time.Duration, error) {
	if c.Pacing.Delay == "" || c.Pacing.Delay == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Pacing.Delay)
	if err != nil {
		return 0, fmt.Errorf("invalid pacing delay %q: %w", c.Pacing.Delay, err)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
