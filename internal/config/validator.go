package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure (mirrors the
// teacher's internal/config.ValidationError).
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the accepted values for LogConfig.Level.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

func isValidLogLevel(level string) bool {
	for _, v := range ValidLogLevels() {
		if v == level {
			return true
		}
	}
	return false
}

// Validate checks the Config for invalid values and returns every problem
// found, rather than stopping at the first one.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(c.Tasks.Path) == "" {
		errs = append(errs, ValidationError{Field: "tasks.path", Value: c.Tasks.Path, Message: "must not be empty"})
	}

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, ValidationError{Field: "log.level", Value: c.Log.Level, Message: "must be one of " + strings.Join(ValidLogLevels(), ", ")})
	}

	if c.Watch.DebounceMillis < 0 {
		errs = append(errs, ValidationError{Field: "watch.debounce_millis", Value: c.Watch.DebounceMillis, Message: "must be >= 0"})
	}
	if c.Watch.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "watch.max_retries", Value: c.Watch.MaxRetries, Message: "must be >= 0"})
	}
	if c.Watch.BackoffBaseMillis <= 0 {
		errs = append(errs, ValidationError{Field: "watch.backoff_base_millis", Value: c.Watch.BackoffBaseMillis, Message: "must be > 0"})
	}
	if c.Watch.ReconnectCeilingMillis <= 0 {
		errs = append(errs, ValidationError{Field: "watch.reconnect_ceiling_millis", Value: c.Watch.ReconnectCeilingMillis, Message: "must be > 0"})
	}

	return errs
}
