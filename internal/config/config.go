// Package config loads payflow settings. Sources are layered, later ones
// winning: built-in defaults, an optional YAML file, an optional .env file
// and finally PAYFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server and the terminal client.
type Config struct {
	BaseURL   string `yaml:"base_url" env:"PAYFLOW_BASE_URL"`
	Addr      string `yaml:"addr" env:"PAYFLOW_ADDR"`
	LogLevel  string `yaml:"log_level" env:"PAYFLOW_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"PAYFLOW_LOG_FORMAT"`

	VerifyTimeout time.Duration `yaml:"verify_timeout" env:"PAYFLOW_VERIFY_TIMEOUT"`
	SubmitTimeout time.Duration `yaml:"submit_timeout" env:"PAYFLOW_SUBMIT_TIMEOUT"`
	VerifyRPS     float64       `yaml:"verify_rps" env:"PAYFLOW_VERIFY_RPS"`
	VerifyBurst   int           `yaml:"verify_burst" env:"PAYFLOW_VERIFY_BURST"`

	MinProcessing       time.Duration `yaml:"min_processing" env:"PAYFLOW_MIN_PROCESSING"`
	ShakeDuration       time.Duration `yaml:"shake_duration" env:"PAYFLOW_SHAKE_DURATION"`
	CelebrationDuration time.Duration `yaml:"celebration_duration" env:"PAYFLOW_CELEBRATION_DURATION"`
	ProgressInterval    time.Duration `yaml:"progress_interval" env:"PAYFLOW_PROGRESS_INTERVAL"`

	SessionTTL  time.Duration `yaml:"session_ttl" env:"PAYFLOW_SESSION_TTL"`
	DemoPayload string        `yaml:"demo_payload" env:"PAYFLOW_DEMO_PAYLOAD"`
	// AuthToken is the bearer token of the terminal client.
	AuthToken string `yaml:"auth_token" env:"PAYFLOW_AUTH_TOKEN"`
	// CameraDir holds image frames replayed as camera devices.
	CameraDir string `yaml:"camera_dir" env:"PAYFLOW_CAMERA_DIR"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:             "http://localhost:8000",
		Addr:                ":8080",
		LogLevel:            "info",
		LogFormat:           "text",
		VerifyTimeout:       10 * time.Second,
		SubmitTimeout:       30 * time.Second,
		VerifyRPS:           5,
		VerifyBurst:         5,
		MinProcessing:       2 * time.Second,
		ShakeDuration:       500 * time.Millisecond,
		CelebrationDuration: 3 * time.Second,
		ProgressInterval:    150 * time.Millisecond,
		SessionTTL:          15 * time.Minute,
		DemoPayload:         "1234567890|100",
	}
}

// Load layers yamlPath and envPath over the defaults and then applies the
// process environment. Empty paths are skipped; a missing .env file is not
// an error, a missing YAML file named explicitly is.
func Load(yamlPath, envPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		b, err := os.ReadFile(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envPath, err)
		}
	}

	// StrictDecode reports "no PAYFLOW_* variable set" as ErrInvalidTarget.
	if err := envdecode.StrictDecode(&cfg); err != nil && !errors.Is(err, envdecode.ErrInvalidTarget) {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings the binaries cannot run without.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: session_ttl must be positive")
	}
	return nil
}
