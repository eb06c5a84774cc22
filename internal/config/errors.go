package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigParseFailed is returned when the YAML file cannot be parsed.
	ErrConfigParseFailed = errors.New("failed to parse configuration")

	// ErrConfigEnvVarNotFound is returned when a required value is missing.
	ErrConfigEnvVarNotFound = errors.New("required configuration value not found")

	// ErrInvalidEnvValue is returned when an environment value cannot be parsed into its field.
	ErrInvalidEnvValue = errors.New("invalid environment value")
)

// ValidationError represents an error in configuration validation.
type ValidationError struct {
	Field  string
	Env    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Env != "" {
		return fmt.Sprintf("invalid config: field %q (env %s): %s", e.Field, e.Env, e.Reason)
	}
	return fmt.Sprintf("invalid config: field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigEnvVarNotFound
}

// LoadError represents an error loading configuration.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load config from %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func required(field, env, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Env: env, Reason: "is required"}
	}
	return nil
}
