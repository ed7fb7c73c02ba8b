// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/modist-io/modist/pkg/archive"
	"github.com/modist-io/modist/pkg/hasher"
)

const (
	// LogLevelDebug logs every artifact as it is hashed, written or checked.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs one line per operation.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn only logs warnings, such as skipped verification.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError only logs errors.
	LogLevelError LogLevel = "error"
	// LogLevelFatal only logs fatal errors.
	LogLevelFatal LogLevel = "fatal"
)

var (
	// ErrInvalidLogLevel is the sentinel error wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLimit is the sentinel error wrapped by InvalidLimitError.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of emitted log lines.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidLimitError is returned when a numeric setting is out of range.
	InvalidLimitError struct {
		Key   string
		Value int64
		Min   int64
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds modist's packaging defaults.
	Config struct {
		// ArchiveType is the compression of created archives.
		ArchiveType archive.ArchiveType `json:"archive_type" mapstructure:"archive_type"`
		// HashType is the checksum algorithm of created manifests.
		HashType hasher.HashType `json:"hash_type" mapstructure:"hash_type"`
		// MaxWorkers bounds the hashing workers; 0 uses one less than the CPU count.
		MaxWorkers int `json:"max_workers" mapstructure:"max_workers"`
		// ChunkSize is the number of bytes read per hashing iteration.
		ChunkSize int `json:"chunk_size" mapstructure:"chunk_size"`
		// BufferLimit is the largest artifact buffered for parallel verification.
		BufferLimit int64 `json:"buffer_limit" mapstructure:"buffer_limit"`
		// ProbeCacheSize is the number of cached archive probes; 0 disables the cache.
		ProbeCacheSize int `json:"probe_cache_size" mapstructure:"probe_cache_size"`
		// Log configures logging.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		// Level is the minimum level of emitted log lines.
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ArchiveType:    archive.Default,
		HashType:       hasher.Default,
		MaxWorkers:     0,
		ChunkSize:      hasher.DefaultChunkSize,
		BufferLimit:    archive.DefaultBufferLimit,
		ProbeCacheSize: archive.DefaultProbeCacheSize,
		Log:            LogConfig{Level: LogLevelInfo},
	}
}

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Level returns the charmbracelet/log level for l.
func (l LogLevel) Level() (log.Level, error) {
	if valid, errs := l.IsValid(); !valid {
		return 0, errs[0]
	}
	return log.ParseLevel(string(l))
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error, fatal)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface for InvalidLimitError.
func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("%s: %d is below the minimum of %d", e.Key, e.Value, e.Min)
}

// Unwrap returns ErrInvalidLimit for errors.Is() compatibility.
func (e *InvalidLimitError) Unwrap() error { return ErrInvalidLimit }

// IsValid returns whether every field of the Config is valid.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if !c.ArchiveType.Valid() {
		errs = append(errs, &archive.UnknownArchiveTypeError{Value: c.ArchiveType.String()})
	}
	if !c.HashType.Valid() {
		errs = append(errs, &hasher.UnknownHashTypeError{Value: c.HashType.String()})
	}
	limits := []struct {
		key   string
		value int64
		min   int64
	}{
		{"max_workers", int64(c.MaxWorkers), 0},
		{"chunk_size", int64(c.ChunkSize), 1},
		{"buffer_limit", c.BufferLimit, 1},
		{"probe_cache_size", int64(c.ProbeCacheSize), 0},
	}
	for _, l := range limits {
		if l.value < l.min {
			errs = append(errs, &InvalidLimitError{Key: l.key, Value: l.value, Min: l.min})
		}
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msg := fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
