package domain

import "errors"

// Domain errors represent error conditions in the wireship core.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when start is requested while a session
	// is already streaming.
	ErrAlreadyRunning = errors.New("wireship: already running")

	// ErrNotRunning is returned when stop is requested with no active session.
	ErrNotRunning = errors.New("wireship: not running")

	// ErrNoData is returned when export is requested with an empty record store.
	ErrNoData = errors.New("wireship: no data to export")

	// ErrShutdownTimeout is returned when the ingest loop does not finish
	// within the stop timeout.
	ErrShutdownTimeout = errors.New("wireship: shutdown timeout")

	// ErrBadMagic is returned when a byte window does not start with the
	// frame magic constant.
	ErrBadMagic = errors.New("wireship: bad frame magic")

	// ErrShortFrame is returned when a byte window is smaller than one frame.
	ErrShortFrame = errors.New("wireship: short frame")
)
