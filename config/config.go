package config

import (
	core "github.com/wesleyorama2/tether/internal/config"
)

// Collection file types.
type (
	Config       = core.Config
	ClientConfig = core.ClientConfig
	LogConfig    = core.LogConfig
	Environment  = core.Environment
	Request      = core.Request
)

// Validation results.
type (
	ValidationError  = core.ValidationError
	ValidationErrors = core.ValidationErrors
)

// EnvPrefix is the prefix of the override variables.
const EnvPrefix = core.EnvPrefix

var (
	// LoadConfig reads, overrides and validates a collection file.
	LoadConfig = core.LoadConfig
	// ParseConfig parses collection data; the format follows the extension.
	ParseConfig = core.ParseConfig
	// ValidateConfig reports every problem in a collection.
	ValidateConfig = core.ValidateConfig
	// ValidateEnvironment checks that an environment exists.
	ValidateEnvironment = core.ValidateEnvironment
	// ValidateRequest checks that a named request exists.
	ValidateRequest = core.ValidateRequest
)
