package config

import (
	"fmt"
	"strings"
	"time"
)

// maxRetries bounds command retries: a command is sent at most twice.
const maxRetries = 1

// ValidationError collects every problem found in a settings file.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "settings validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any problem was recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted problem.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg. It returns a *ValidationError listing every problem.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if cfg.Baud <= 0 {
		ve.Add("baud must be positive, got %d", cfg.Baud)
	}
	if cfg.Verbosity < 0 {
		ve.Add("verbosity must not be negative, got %d", cfg.Verbosity)
	}

	t := cfg.Timing
	if t.BootloaderBaud <= 0 {
		ve.Add("timing.bootloader_baud must be positive, got %d", t.BootloaderBaud)
	}
	if t.EchoTimeout <= 0 {
		ve.Add("timing.echo_timeout must be positive, got %s", t.EchoTimeout)
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"collect_window", t.CollectWindow},
		{"guard_time", t.GuardTime},
		{"escape_gap", t.EscapeGap},
		{"settle", t.Settle},
	} {
		if d.val < 0 {
			ve.Add("timing.%s must not be negative, got %s", d.name, d.val)
		}
	}
	if t.EscapeAttempts < 1 {
		ve.Add("timing.escape_attempts must be at least 1, got %d", t.EscapeAttempts)
	}
	if t.Retries < 0 || t.Retries > maxRetries {
		ve.Add("timing.retries must be between 0 and %d, got %d", maxRetries, t.Retries)
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
