package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
	"github.com/wesleyorama2/tether/internal/logging"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors aggregates every problem found in a configuration.
type ValidationErrors []ValidationError

// Error joins the individual messages.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(e), strings.Join(msgs, "; "))
}

var validMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// ValidateConfig validates the configuration. Problems are reported in a
// stable order.
func ValidateConfig(config *Config) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, validateClient(&config.Client)...)

	if config.Log.Level != "" {
		if _, err := logging.ParseLevel(config.Log.Level); err != nil {
			errors = append(errors, ValidationError{
				Path:    "log.level",
				Message: fmt.Sprintf("invalid level: %s", config.Log.Level),
			})
		}
	}
	switch strings.ToLower(config.Log.Format) {
	case "", "console", "text", "json":
	default:
		errors = append(errors, ValidationError{
			Path:    "log.format",
			Message: fmt.Sprintf("invalid format: %s", config.Log.Format),
		})
	}

	for _, name := range sortedKeys(config.Environments) {
		env := config.Environments[name]
		if env.BaseURL != "" && !isAbsoluteURL(ProcessEnvironment(env.BaseURL, env.Vars)) {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("environments.%s.baseUrl", name),
				Message: fmt.Sprintf("not an absolute http(s) URL: %s", env.BaseURL),
			})
		}
	}

	for _, name := range config.RequestNames() {
		errors = append(errors, validateRequest(name, config.Requests[name])...)
	}

	return errors
}

func validateClient(cc *ClientConfig) ValidationErrors {
	var errors ValidationErrors

	if cc.BaseURL != "" && !isAbsoluteURL(cc.BaseURL) {
		errors = append(errors, ValidationError{
			Path:    "client.baseUrl",
			Message: fmt.Sprintf("not an absolute http(s) URL: %s", cc.BaseURL),
		})
	}

	durations := []struct {
		path     string
		value    string
		positive bool
	}{
		{"client.timeout", cc.Timeout, true},
		{"client.dnsCacheTtl", cc.DNSCacheTTL, false},
		{"client.backoffUnit", cc.BackoffUnit, false},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := parseDurationString(d.value)
		switch {
		case err != nil:
			errors = append(errors, ValidationError{Path: d.path, Message: fmt.Sprintf("invalid duration: %s", d.value)})
		case parsed < 0 || (d.positive && parsed == 0):
			errors = append(errors, ValidationError{Path: d.path, Message: "duration out of range"})
		}
	}

	counts := []struct {
		path  string
		value *int
	}{
		{"client.maxRetries", cc.MaxRetries},
		{"client.limit", cc.Limit},
		{"client.limitPerHost", cc.LimitPerHost},
	}
	for _, c := range counts {
		if c.value != nil && *c.value < 0 {
			errors = append(errors, ValidationError{Path: c.path, Message: "cannot be negative"})
		}
	}

	return errors
}

func validateRequest(name string, req Request) ValidationErrors {
	var errors ValidationErrors
	path := func(field string) string { return fmt.Sprintf("requests.%s.%s", name, field) }

	if req.URL == "" {
		errors = append(errors, ValidationError{Path: path("url"), Message: "url is required"})
	} else if _, err := url.Parse(req.URL); err != nil {
		errors = append(errors, ValidationError{Path: path("url"), Message: fmt.Sprintf("invalid url: %v", err)})
	}

	if req.Method == "" {
		errors = append(errors, ValidationError{Path: path("method"), Message: "method is required"})
	} else if !stringInSlice(strings.ToUpper(req.Method), validMethods) {
		errors = append(errors, ValidationError{Path: path("method"), Message: fmt.Sprintf("invalid method: %s", req.Method)})
	}

	if req.Expect != "" && !tetherhttp.Shape(strings.ToLower(req.Expect)).Valid() {
		errors = append(errors, ValidationError{Path: path("expect"), Message: fmt.Sprintf("unsupported response shape: %s", req.Expect)})
	}

	if req.JSON != nil && req.Data != "" {
		errors = append(errors, ValidationError{Path: path("data"), Message: "json and data are mutually exclusive"})
	}

	if req.Extract != "" && !strings.HasPrefix(req.Extract, "$") {
		errors = append(errors, ValidationError{Path: path("extract"), Message: "extract path must start with $"})
	}

	return errors
}

// ValidateEnvironment validates that an environment exists
func ValidateEnvironment(config *Config, envName string) error {
	if _, ok := config.Environments[envName]; !ok {
		return fmt.Errorf("environment not found: %s", envName)
	}
	return nil
}

// ValidateRequest validates that a request exists
func ValidateRequest(config *Config, reqName string) error {
	if _, ok := config.Requests[reqName]; !ok {
		return fmt.Errorf("request not found: %s", reqName)
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// stringInSlice checks if a string is in a slice
func stringInSlice(str string, slice []string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
