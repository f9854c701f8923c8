package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config for TOML parsing. Durations are strings so the
// file can say "250ms" or "2s".
type FileConfig struct {
	Port           string `toml:"port"`
	Baudrate       int    `toml:"baudrate"`
	PollInterval   string `toml:"poll_interval"`
	StopTimeout    string `toml:"stop_timeout"`
	StatusInterval string `toml:"status_interval"`
	ReadBufBytes   int    `toml:"read_buf_bytes"`
	LogLevel       string `toml:"log_level"`
}

// DefaultConfigPath returns the default config file location,
// ~/.wireship/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".wireship", "config.toml"), nil
}

// FileExists reports whether the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// ApplyFileConfig overlays file values onto cfg, skipping any field whose
// flag was set explicitly on the command line.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)
	s.setString("port", fc.Port, &cfg.Port)
	s.setInt("baudrate", fc.Baudrate, &cfg.Baudrate)
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", fc.StopTimeout, &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("status-interval", fc.StatusInterval, &cfg.StatusInterval); err != nil {
		return err
	}
	s.setInt("read-buf", fc.ReadBufBytes, &cfg.ReadBufBytes)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	return nil
}
