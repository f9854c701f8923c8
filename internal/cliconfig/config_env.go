package cliconfig

import "os"

// Environment variable names recognized by wireshipd.
const (
	EnvPort           = "WIRESHIP_PORT"
	EnvBaudrate       = "WIRESHIP_BAUDRATE"
	EnvPollInterval   = "WIRESHIP_POLL_INTERVAL"
	EnvStopTimeout    = "WIRESHIP_STOP_TIMEOUT"
	EnvStatusInterval = "WIRESHIP_STATUS_INTERVAL"
	EnvReadBufBytes   = "WIRESHIP_READ_BUF_BYTES"
	EnvLogLevel       = "WIRESHIP_LOG_LEVEL"
)

// EnvOverrides reports which flag names have a value present in the
// environment. The daemon merges these into the changed-flags map before
// applying the file and before snapshotting the watcher's base config, so
// env values keep precedence over file values across reloads.
func EnvOverrides() map[string]bool {
	vars := map[string]string{
		"port":            EnvPort,
		"baudrate":        EnvBaudrate,
		"poll":            EnvPollInterval,
		"stop-timeout":    EnvStopTimeout,
		"status-interval": EnvStatusInterval,
		"read-buf":        EnvReadBufBytes,
		"log-level":       EnvLogLevel,
	}
	overrides := make(map[string]bool)
	for flag, env := range vars {
		if os.Getenv(env) != "" {
			overrides[flag] = true
		}
	}
	return overrides
}

// ApplyEnvConfig overlays WIRESHIP_* environment variables onto cfg,
// skipping any field whose flag was set explicitly on the command line.
// Env values override file values, so this runs after ApplyFileConfig.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	s.setString("port", os.Getenv(EnvPort), &cfg.Port)
	if err := s.setIntFromString("baudrate", os.Getenv(EnvBaudrate), &cfg.Baudrate); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv(EnvPollInterval), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("stop-timeout", os.Getenv(EnvStopTimeout), &cfg.StopTimeout); err != nil {
		return err
	}
	if err := s.setDuration("status-interval", os.Getenv(EnvStatusInterval), &cfg.StatusInterval); err != nil {
		return err
	}
	if err := s.setIntFromString("read-buf", os.Getenv(EnvReadBufBytes), &cfg.ReadBufBytes); err != nil {
		return err
	}
	s.setString("log-level", os.Getenv(EnvLogLevel), &cfg.LogLevel)
	return nil
}
