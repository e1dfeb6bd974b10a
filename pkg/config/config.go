// Package config loads formkit settings from a YAML file, an optional .env
// file and FORMKIT_* environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formkit/pkg/logging"
)

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "FORMKIT_"

// Config is the full set of runtime settings.
type Config struct {
	API     API            `yaml:"api"`
	Upload  Upload         `yaml:"upload"`
	Pager   Pager          `yaml:"pager"`
	Session Session        `yaml:"session"`
	Log     logging.Config `yaml:"log"`
}

// API configures the backend collaborator.
type API struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Upload configures the upload endpoint.
type Upload struct {
	Endpoint    string `yaml:"endpoint"`
	FieldName   string `yaml:"field_name"`
	MaxBytes    int64  `yaml:"max_bytes"`
	Concurrency int    `yaml:"concurrency"`
}

// Pager configures list pagination.
type Pager struct {
	PageSizes   []int `yaml:"page_sizes"`
	DefaultSize int   `yaml:"default_size"`
}

// Session configures token persistence.
type Session struct {
	Path string `yaml:"path"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		API: API{
			BaseURL: "http://localhost:8080/api",
			Timeout: 30 * time.Second,
		},
		Upload: Upload{
			Endpoint:    "/upload",
			FieldName:   "file",
			MaxBytes:    10 << 20,
			Concurrency: 3,
		},
		Pager: Pager{
			PageSizes:   []int{10, 20, 50, 100},
			DefaultSize: 10,
		},
		Session: Session{Path: "formkit.db"},
		Log:     logging.Config{Level: "info"},
	}
}

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	envFile string
	lookup  func(string) (string, bool)
}

// WithEnvFile reads dotenv values from path. Missing files are ignored.
func WithEnvFile(path string) Option {
	return func(opts *loadOptions) {
		opts.envFile = path
	}
}

// WithLookup replaces os.LookupEnv, mainly for tests.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(opts *loadOptions) {
		if lookup != nil {
			opts.lookup = lookup
		}
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or missing) and the environment.
func Load(path string, options ...Option) (Config, error) {
	opts := loadOptions{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	dotenv := map[string]string{}
	if opts.envFile != "" {
		values, err := godotenv.Read(opts.envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", opts.envFile, err)
		default:
			dotenv = values
		}
	}
	lookup := func(key string) (string, bool) {
		if value, ok := opts.lookup(key); ok {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, target *string) {
		if value, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	str("API_URL", &cfg.API.BaseURL)
	str("UPLOAD_ENDPOINT", &cfg.Upload.Endpoint)
	str("UPLOAD_FIELD", &cfg.Upload.FieldName)
	str("SESSION_PATH", &cfg.Session.Path)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)

	if value, ok := lookup(EnvPrefix + "API_TIMEOUT"); ok && value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config: %sAPI_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.API.Timeout = timeout
	}
	if value, ok := lookup(EnvPrefix + "UPLOAD_MAX_BYTES"); ok && value != "" {
		limit, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sUPLOAD_MAX_BYTES: %w", EnvPrefix, err)
		}
		cfg.Upload.MaxBytes = limit
	}
	if value, ok := lookup(EnvPrefix + "PAGE_SIZE"); ok && value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %sPAGE_SIZE: %w", EnvPrefix, err)
		}
		cfg.Pager.DefaultSize = size
	}
	return nil
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("config: api.base_url is required")
	}
	if len(c.Pager.PageSizes) == 0 {
		return errors.New("config: pager.page_sizes must not be empty")
	}
	for _, size := range c.Pager.PageSizes {
		if size <= 0 {
			return fmt.Errorf("config: pager.page_sizes contains invalid size %d", size)
		}
		if size == c.Pager.DefaultSize {
			return nil
		}
	}
	return fmt.Errorf("config: pager.default_size %d is not one of %v", c.Pager.DefaultSize, c.Pager.PageSizes)
}
