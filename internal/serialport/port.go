// Package serialport provides the byte source abstraction over the physical
// serial link and its go.bug.st/serial implementation.
package serialport

import (
	"errors"
	"io"
	"os"

	"go.bug.st/serial"
)

// ByteSource is a readable, closable stream of raw bytes. Read must return
// within the configured read timeout so the ingest loop can observe its stop
// signal; a timed-out read returns (0, nil).
type ByteSource interface {
	io.Reader
	io.Closer
}

// Opener opens a byte source for the given port name and baud rate.
// The session controller holds one of these so tests can substitute a fake
// source for the physical port.
type Opener func(name string, baud int) (ByteSource, error)

// IsFatal classifies a read error from a ByteSource. Fatal errors mean the
// source is gone (unplugged, closed) and the session must end; everything
// else is transient and the ingest loop counts it and continues.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	return errors.As(err, &portErr)
}
