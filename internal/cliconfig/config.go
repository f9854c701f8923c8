// Package cliconfig handles daemon configuration for wireshipd: defaults,
// TOML config file, WIRESHIP_* environment variables, and command-line
// flags, applied in that order with later layers winning. Flags that were
// explicitly set are tracked in a changed map so file and env values never
// override them.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the daemon configuration for wireshipd.
type Config struct {
	// Port is the default serial device for start commands that name none.
	Port string

	// Baudrate is the default baud rate for start commands that name none.
	Baudrate int

	// PollInterval is the ingest loop poll and the serial read timeout.
	PollInterval time.Duration

	// StopTimeout bounds how long stop waits for the ingest loop to join.
	StopTimeout time.Duration

	// StatusInterval is the cadence of unsolicited status emission while
	// streaming.
	StatusInterval time.Duration

	// ReadBufBytes is the ingest read buffer size.
	ReadBufBytes int

	// LogLevel is the zerolog level name for stderr logging.
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Baudrate:       115200,
		PollInterval:   100 * time.Millisecond,
		StopTimeout:    2 * time.Second,
		StatusInterval: time.Second,
		ReadBufBytes:   4096,
		LogLevel:       "info",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Baudrate <= 0 {
		return fmt.Errorf("baudrate must be positive, got %d", c.Baudrate)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive, got %s", c.StopTimeout)
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("status interval must be positive, got %s", c.StatusInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses the configured log level name.
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// configSetter applies layered values while respecting explicitly set flags.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
