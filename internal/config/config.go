// Package config loads settings from environment variables with an
// optional YAML overlay file for deployments that prefer config files
// over env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default service endpoints. Both are override points; deployments
// point these at their own instances.
const (
	defaultVerovioURL  = "https://verovio-renderer.modal.run"
	defaultMusicGenURL = "https://musicgen-melody.modal.run"
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`

	// Artifact output
	OutputDir string `yaml:"output_dir"`

	// Remote capabilities
	VerovioURL  string `yaml:"verovio_url"`
	MusicGenURL string `yaml:"musicgen_url"`

	// Local transcription model command
	TranscribeCommand string `yaml:"transcribe_command"`

	// Timeouts
	RenderTimeout   time.Duration `yaml:"render_timeout"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`

	// Observability
	SentryDSN string `yaml:"sentry_dsn"`
}

func Load() *Config {
	return &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		OutputDir:         getEnv("OUTPUT_DIR", "output"),
		VerovioURL:        getEnv("VEROVIO_API_URL", defaultVerovioURL),
		MusicGenURL:       getEnv("MUSICGEN_API_URL", defaultMusicGenURL),
		TranscribeCommand: getEnv("TRANSCRIBE_COMMAND", "basic-pitch"),
		RenderTimeout:     getDurationEnv("RENDER_TIMEOUT_SECONDS", 30*time.Second),
		GenerateTimeout:   getDurationEnv("GENERATE_TIMEOUT_SECONDS", 5*time.Minute),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
	}
}

// ApplyFile overlays settings from a YAML file. Only keys present in
// the file override the loaded values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	overlay := struct {
		Environment       *string `yaml:"environment"`
		Port              *string `yaml:"port"`
		OutputDir         *string `yaml:"output_dir"`
		VerovioURL        *string `yaml:"verovio_url"`
		MusicGenURL       *string `yaml:"musicgen_url"`
		TranscribeCommand *string `yaml:"transcribe_command"`
		RenderTimeout     *int    `yaml:"render_timeout_seconds"`
		GenerateTimeout   *int    `yaml:"generate_timeout_seconds"`
		SentryDSN         *string `yaml:"sentry_dsn"`
	}{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.Environment != nil {
		c.Environment = *overlay.Environment
	}
	if overlay.Port != nil {
		c.Port = *overlay.Port
	}
	if overlay.OutputDir != nil {
		c.OutputDir = *overlay.OutputDir
	}
	if overlay.VerovioURL != nil {
		c.VerovioURL = *overlay.VerovioURL
	}
	if overlay.MusicGenURL != nil {
		c.MusicGenURL = *overlay.MusicGenURL
	}
	if overlay.TranscribeCommand != nil {
		c.TranscribeCommand = *overlay.TranscribeCommand
	}
	if overlay.RenderTimeout != nil {
		c.RenderTimeout = time.Duration(*overlay.RenderTimeout) * time.Second
	}
	if overlay.GenerateTimeout != nil {
		c.GenerateTimeout = time.Duration(*overlay.GenerateTimeout) * time.Second
	}
	if overlay.SentryDSN != nil {
		c.SentryDSN = *overlay.SentryDSN
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
