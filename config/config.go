// Package config loads the service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"shipmonitor/logging"
)

type Config struct {
	Dataset struct {
		Path     string `yaml:"path"`
		Encoding string `yaml:"encoding"`
	} `yaml:"dataset"`
	Model    ModelConfig `yaml:"model"`
	Http     HTTPConfig  `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Charts struct {
		CacheSize int `yaml:"cache_size"`
	} `yaml:"charts"`
	Log logging.Config `yaml:"log"`
}

// ModelConfig locates the pipeline artifact: Path is tried first, then the
// remote repository.
type ModelConfig struct {
	Path           string        `yaml:"path"`
	Repository     string        `yaml:"repository"`
	Filename       string        `yaml:"filename"`
	Revision       string        `yaml:"revision"`
	BaseURL        string        `yaml:"base_url"`
	CacheDir       string        `yaml:"cache_dir"`
	Token          string        `yaml:"token"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Dataset.Path = "data/shipping.csv"
	cfg.Model = ModelConfig{
		Path:           "data/model_pipeline.json",
		Filename:       "model_pipeline.json",
		Revision:       "main",
		CacheDir:       "data/cache",
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
	}
	cfg.Http = HTTPConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
	}
	cfg.Database.Path = "data/predictions.db"
	cfg.Charts.CacheSize = 64
	cfg.Log = logging.Config{Level: "info", Format: "console"}
	return cfg
}

// Load reads path over the defaults and applies SHIPMON_* overrides. A missing
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.UnmarshalStrict(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Dataset.Path, "SHIPMON_DATASET_PATH")
	setString(&c.Dataset.Encoding, "SHIPMON_DATASET_ENCODING")
	setString(&c.Model.Path, "SHIPMON_MODEL_PATH")
	setString(&c.Model.Repository, "SHIPMON_MODEL_REPOSITORY")
	setString(&c.Model.Token, "HF_TOKEN")
	setString(&c.Model.Token, "SHIPMON_MODEL_TOKEN")
	setString(&c.Database.Path, "SHIPMON_DB_PATH")
	setString(&c.Log.Level, "SHIPMON_LOG_LEVEL")

	if v, ok := os.LookupEnv("SHIPMON_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("SHIPMON_PORT: %w", err)
		}
		c.Http.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return errors.New("dataset.path is required")
	}
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Model.Path == "" && c.Model.Repository == "" {
		return errors.New("model.path or model.repository is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
