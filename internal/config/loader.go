// Package config loads tether collection files: client settings, logging,
// named environments and named requests.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
)

// EnvPrefix is the prefix of the environment variables that override the
// client and log sections.
const EnvPrefix = "TETHER"

// Config represents the top-level configuration
type Config struct {
	Client       ClientConfig           `json:"client" yaml:"client"`
	Log          LogConfig              `json:"log" yaml:"log"`
	Environments map[string]Environment `json:"environments,omitempty" yaml:"environments,omitempty"`
	Requests     map[string]Request     `json:"requests" yaml:"requests"`
}

// ClientConfig mirrors the client options. Unset fields keep the client
// defaults; durations are strings such as "10s".
type ClientConfig struct {
	BaseURL      string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Timeout      string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxRetries   *int              `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Limit        *int              `json:"limit,omitempty" yaml:"limit,omitempty"`
	LimitPerHost *int              `json:"limitPerHost,omitempty" yaml:"limitPerHost,omitempty"`
	DNSCacheTTL  string            `json:"dnsCacheTtl,omitempty" yaml:"dnsCacheTtl,omitempty"`
	VerifyTLS    *bool             `json:"verifyTls,omitempty" yaml:"verifyTls,omitempty"`
	BackoffUnit  string            `json:"backoffUnit,omitempty" yaml:"backoffUnit,omitempty"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Environment represents an environment configuration
type Environment struct {
	BaseURL string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Vars    map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Request represents a request configuration
type Request struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	JSON    any               `json:"json,omitempty" yaml:"json,omitempty"`
	Data    string            `json:"data,omitempty" yaml:"data,omitempty"`
	Expect  string            `json:"expect,omitempty" yaml:"expect,omitempty"`
	Extract string            `json:"extract,omitempty" yaml:"extract,omitempty"`
	Schema  string            `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// envOverrides are read from TETHER_* variables. Nil fields were not set.
type envOverrides struct {
	BaseURL      *string        `envconfig:"BASE_URL"`
	Timeout      *time.Duration `envconfig:"TIMEOUT"`
	MaxRetries   *int           `envconfig:"MAX_RETRIES"`
	Limit        *int           `envconfig:"LIMIT"`
	LimitPerHost *int           `envconfig:"LIMIT_PER_HOST"`
	DNSCacheTTL  *time.Duration `envconfig:"DNS_CACHE_TTL"`
	VerifyTLS    *bool          `envconfig:"VERIFY_TLS"`
	LogLevel     *string        `envconfig:"LOG_LEVEL"`
	LogFormat    *string        `envconfig:"LOG_FORMAT"`
}

// LoadConfig loads a configuration file, applies TETHER_* overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if errs := ValidateConfig(config); len(errs) > 0 {
		return nil, errs
	}

	return config, nil
}

// ParseConfig parses configuration data. The format is chosen by the
// extension of path: .json is JSON, anything else is YAML.
func ParseConfig(data []byte, path string) (*Config, error) {
	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ApplyEnv overrides the client and log sections from TETHER_* variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("error reading environment overrides: %w", err)
	}

	if env.BaseURL != nil {
		c.Client.BaseURL = *env.BaseURL
	}
	if env.Timeout != nil {
		c.Client.Timeout = env.Timeout.String()
	}
	if env.MaxRetries != nil {
		c.Client.MaxRetries = env.MaxRetries
	}
	if env.Limit != nil {
		c.Client.Limit = env.Limit
	}
	if env.LimitPerHost != nil {
		c.Client.LimitPerHost = env.LimitPerHost
	}
	if env.DNSCacheTTL != nil {
		c.Client.DNSCacheTTL = env.DNSCacheTTL.String()
	}
	if env.VerifyTLS != nil {
		c.Client.VerifyTLS = env.VerifyTLS
	}
	if env.LogLevel != nil {
		c.Log.Level = *env.LogLevel
	}
	if env.LogFormat != nil {
		c.Log.Format = *env.LogFormat
	}
	return nil
}

// ClientOptions converts the client section into client options. When
// envName is set, its variables fill placeholders in the base URL and
// headers, and that environment's base URL and headers take precedence.
func (c *Config) ClientOptions(envName string) ([]tetherhttp.ClientOption, error) {
	var opts []tetherhttp.ClientOption
	cc := c.Client

	baseURL := cc.BaseURL
	headers := cc.Headers
	if envName != "" {
		env, ok := c.Environments[envName]
		if !ok {
			return nil, fmt.Errorf("environment %q not found", envName)
		}
		baseURL = ProcessEnvironment(baseURL, env.Vars)
		if env.BaseURL != "" {
			baseURL = ProcessEnvironment(env.BaseURL, env.Vars)
		}
		headers = MergeEnvironments(
			ProcessEnvironmentInMap(headers, env.Vars),
			ProcessEnvironmentInMap(env.Headers, env.Vars))
	}
	if baseURL != "" {
		opts = append(opts, tetherhttp.WithBaseURL(baseURL))
	}
	if len(headers) > 0 {
		opts = append(opts, tetherhttp.WithHeaders(headers))
	}

	durations := []struct {
		name  string
		value string
		apply func(time.Duration) tetherhttp.ClientOption
	}{
		{"timeout", cc.Timeout, tetherhttp.WithTimeout},
		{"dnsCacheTtl", cc.DNSCacheTTL, tetherhttp.WithDNSCacheTTL},
		{"backoffUnit", cc.BackoffUnit, tetherhttp.WithBackoffUnit},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := parseDurationString(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid client.%s '%s': %w", d.name, d.value, err)
		}
		opts = append(opts, d.apply(parsed))
	}

	if cc.MaxRetries != nil {
		opts = append(opts, tetherhttp.WithMaxRetries(*cc.MaxRetries))
	}
	if cc.Limit != nil {
		opts = append(opts, tetherhttp.WithConnLimit(*cc.Limit))
	}
	if cc.LimitPerHost != nil {
		opts = append(opts, tetherhttp.WithConnLimitPerHost(*cc.LimitPerHost))
	}
	if cc.VerifyTLS != nil {
		opts = append(opts, tetherhttp.WithVerifyTLS(*cc.VerifyTLS))
	}

	return opts, nil
}

// RequestNames returns the names of the configured requests in sorted order.
func (c *Config) RequestNames() []string {
	names := make([]string, 0, len(c.Requests))
	for name := range c.Requests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vars returns the variables of the named environment, or nil.
func (c *Config) Vars(envName string) map[string]string {
	if envName == "" {
		return nil
	}
	return c.Environments[envName].Vars
}

// Build converts a configured request into a client request, substituting
// {{name}} placeholders from vars.
func (r Request) Build(vars map[string]string) *tetherhttp.Request {
	opts := []tetherhttp.RequestOption{}

	if len(r.Query) > 0 {
		for key, value := range ProcessEnvironmentInMap(r.Query, vars) {
			opts = append(opts, tetherhttp.WithQueryParam(key, value))
		}
	}
	if len(r.Headers) > 0 {
		opts = append(opts, tetherhttp.WithRequestHeaders(ProcessEnvironmentInMap(r.Headers, vars)))
	}
	switch {
	case r.JSON != nil:
		opts = append(opts, tetherhttp.WithJSON(normalizeYAML(r.JSON)))
	case r.Data != "":
		opts = append(opts, tetherhttp.WithData(ProcessEnvironment(r.Data, vars)))
	}
	if r.Expect != "" {
		opts = append(opts, tetherhttp.WithShape(tetherhttp.Shape(r.Expect)))
	}

	return tetherhttp.NewRequest(r.Method, ProcessEnvironment(r.URL, vars), opts...)
}

// normalizeYAML converts map[any]any values produced by some YAML inputs
// into map[string]any so they can be encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[fmt.Sprint(key)] = normalizeYAML(value)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[key] = normalizeYAML(value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, value := range t {
			out[i] = normalizeYAML(value)
		}
		return out
	}
	return v
}

// Helper functions

// parseDurationString parses duration strings like "30s", "5m", "1h"
func parseDurationString(duration string) (time.Duration, error) {
	// Handle common duration formats
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return 0, fmt.Errorf("duration cannot be empty")
	}

	// Try parsing as Go duration
	if d, err := time.ParseDuration(duration); err == nil {
		return d, nil
	}

	// Handle additional formats like "1 minute", "30 seconds"
	duration = strings.ToLower(duration)
	duration = strings.ReplaceAll(duration, " ", "")

	replacements := []struct{ word, abbrev string }{
		{"seconds", "s"},
		{"second", "s"},
		{"minutes", "m"},
		{"minute", "m"},
		{"hours", "h"},
		{"hour", "h"},
	}
	for _, r := range replacements {
		duration = strings.ReplaceAll(duration, r.word, r.abbrev)
	}

	return time.ParseDuration(duration)
}

// ProcessEnvironment replaces {{name}} placeholders in input
func ProcessEnvironment(input string, env map[string]string) string {
	result := input

	for key, value := range env {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}

	return result
}

// ProcessEnvironmentInMap processes environment variables in a map
func ProcessEnvironmentInMap(input map[string]string, env map[string]string) map[string]string {
	result := make(map[string]string, len(input))

	for key, value := range input {
		result[key] = ProcessEnvironment(value, env)
	}

	return result
}

// MergeEnvironments merges two maps, with the second taking precedence
func MergeEnvironments(base, override map[string]string) map[string]string {
	result := make(map[string]string, len(base)+len(override))

	for key, value := range base {
		result[key] = value
	}
	for key, value := range override {
		result[key] = value
	}

	return result
}
