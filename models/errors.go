package models

import (
	"errors"
	"fmt"
)

// ConfigError reports a misconfiguration (bad OID, bad pattern, unreachable
// device) that must reach the operator no matter which error policy is in
// effect.
type ConfigError struct {
	Message string
	Cause   error
}

// NewConfigError formats a ConfigError without a cause.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *ConfigError) Unwrap() error { return e.Cause }

// IsConfigError reports whether err or anything it wraps is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
