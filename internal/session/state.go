// Package session implements the daemon's session lifecycle: the
// Idle/Streaming state machine, ownership of the record store and stats, and
// the start/stop/status/export operations driven by the command protocol.
package session

import (
	"time"

	"github.com/hil-labs/wireship/internal/telemetry"
)

// State represents the lifecycle state of the session.
type State int

const (
	StateIdle State = iota
	StateStreaming
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStreaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// Config contains tuning for the session controller.
type Config struct {
	// PollInterval is the ingest loop's wait when the source has no data.
	PollInterval time.Duration

	// StopTimeout bounds how long Stop waits for the ingest loop to finish.
	StopTimeout time.Duration

	// StatusInterval is the cadence of rate sampling and unsolicited status
	// emission while streaming.
	StatusInterval time.Duration

	// ReadBufBytes is the ingest read buffer size. Zero means the ingest
	// default.
	ReadBufBytes int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		PollInterval:   100 * time.Millisecond,
		StopTimeout:    2 * time.Second,
		StatusInterval: time.Second,
	}
}

// Status is a point-in-time view of the session for callers.
type Status struct {
	Running bool
	Stats   telemetry.Snapshot
}

// StatusFunc receives unsolicited status updates while streaming.
type StatusFunc func(Status)
