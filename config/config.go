// Package config loads extraction job files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as text ("4s", "2m") in job files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is one extraction job.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint" toml:"endpoint"`
	Dataset  DatasetConfig  `yaml:"dataset" toml:"dataset"`
	Prompt   PromptConfig   `yaml:"prompt" toml:"prompt"`
	Output   OutputConfig   `yaml:"output" toml:"output"`
	Run      RunConfig      `yaml:"run" toml:"run"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// EndpointConfig selects the model and where to reach it.
type EndpointConfig struct {
	// Platform is a preset name: openai, deepseek, dashscope, local or gemini.
	Platform string `yaml:"platform" toml:"platform"` // default: "openai"

	// Model is sent as the request's model name.
	Model string `yaml:"model" toml:"model"`

	// Proxies overrides the platform's base URLs.
	Proxies []string `yaml:"proxies" toml:"proxies"`

	// APIKeyEnv overrides the platform's credential variable.
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`

	// Params are merged into every request body.
	Params map[string]any `yaml:"params" toml:"params"`
}

// DatasetConfig points at the input rows.
type DatasetConfig struct {
	Path    string `yaml:"path" toml:"path"`
	Start   int    `yaml:"start" toml:"start"`
	End     int    `yaml:"end" toml:"end"`           // 0: to the end
	IDField string `yaml:"id_field" toml:"id_field"` // default: "id"
}

// PromptConfig describes how prompts are rendered.
type PromptConfig struct {
	Template       string            `yaml:"template" toml:"template"` // path to a .twig file
	System         string            `yaml:"system" toml:"system"`
	RequiredFields []string          `yaml:"required_fields" toml:"required_fields"`
	Vars           map[string]string `yaml:"vars" toml:"vars"`
}

// Parser kinds.
const (
	ParserJSON    = "json"
	ParserPattern = "pattern"
)

// OutputConfig describes parsing, validation and persistence.
type OutputConfig struct {
	Dir           string   `yaml:"dir" toml:"dir"`       // default: "output"
	Prefix        string   `yaml:"prefix" toml:"prefix"` // default: "statements"
	Parser        string   `yaml:"parser" toml:"parser"` // default: "json"
	Schema        string   `yaml:"schema" toml:"schema"`
	Pattern       string   `yaml:"pattern" toml:"pattern"`
	Lowercase     []string `yaml:"lowercase" toml:"lowercase"`
	Numeric       []string `yaml:"numeric" toml:"numeric"`
	IncludeFields []string `yaml:"include_fields" toml:"include_fields"`
}

// RunConfig tunes concurrency and retries.
type RunConfig struct {
	Workers        int      `yaml:"workers" toml:"workers"`                 // default: 10
	MaxRetries     int      `yaml:"max_retries" toml:"max_retries"`         // default: 4
	RetryDelay     Duration `yaml:"retry_delay" toml:"retry_delay"`         // default: 4s
	Timeout        Duration `yaml:"timeout" toml:"timeout"`                 // default: 120s
	ConnectTimeout Duration `yaml:"connect_timeout" toml:"connect_timeout"` // default: 10s
	RateLimit      float64  `yaml:"rate_limit" toml:"rate_limit"`           // requests/s, 0: off
	RateBurst      int      `yaml:"rate_burst" toml:"rate_burst"`           // default: 1
	DebugUsage     bool     `yaml:"debug_usage" toml:"debug_usage"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // default: "info"
	Format string `yaml:"format" toml:"format"` // "text" or "json"; default: "text"
}

// Default returns a job with every default applied.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{Platform: "openai"},
		Dataset:  DatasetConfig{IDField: "id"},
		Output: OutputConfig{
			Dir:    "output",
			Prefix: "statements",
			Parser: ParserJSON,
		},
		Run: RunConfig{
			Workers:        10,
			MaxRetries:     4,
			RetryDelay:     Duration(4 * time.Second),
			Timeout:        Duration(120 * time.Second),
			ConnectTimeout: Duration(10 * time.Second),
			RateBurst:      1,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the job file at path (YAML or TOML by extension) over the
// defaults, then applies STATEMENTS_* environment overrides. An empty path
// yields defaults plus overrides. Callers apply their own overrides and then
// call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, formatOf(path), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Parse decodes data in the given format ("yaml" or "toml") into cfg.
func Parse(data []byte, format string, cfg *Config) error {
	switch format {
	case "toml":
		return toml.Unmarshal(data, cfg)
	case "yaml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

// LoadEnvFiles loads .env files without overriding variables already set.
// Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	var errs []error
	if c.Endpoint.Model == "" {
		errs = append(errs, errors.New("endpoint.model is required"))
	}
	if c.Run.Workers < 1 {
		errs = append(errs, fmt.Errorf("run.workers must be positive, got %d", c.Run.Workers))
	}
	if c.Run.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("run.max_retries must be positive, got %d", c.Run.MaxRetries))
	}
	if c.Run.RetryDelay < 0 {
		errs = append(errs, errors.New("run.retry_delay must not be negative"))
	}
	if c.Dataset.Start < 0 || (c.Dataset.End != 0 && c.Dataset.End <= c.Dataset.Start) {
		errs = append(errs, fmt.Errorf("dataset window [%d, %d) is invalid", c.Dataset.Start, c.Dataset.End))
	}
	switch c.Output.Parser {
	case ParserJSON:
	case ParserPattern:
		if c.Output.Pattern == "" {
			errs = append(errs, errors.New("output.pattern is required for the pattern parser"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown output.parser %q", c.Output.Parser))
	}
	return errors.Join(errs...)
}

// APIKey resolves the credential for the endpoint: the custom variable when
// set, otherwise the platform default. Missing keys yield "".
func (c *Config) APIKey(platformEnv string) string {
	if c.Endpoint.APIKeyEnv != "" {
		return os.Getenv(c.Endpoint.APIKeyEnv)
	}
	if platformEnv == "" {
		return ""
	}
	return os.Getenv(platformEnv)
}
