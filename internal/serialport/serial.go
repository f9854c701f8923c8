package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// NewOpener returns an Opener backed by go.bug.st/serial. Every port it
// opens has its read timeout set to readTimeout, which bounds each Read call
// and therefore the ingest loop's stop latency.
func NewOpener(readTimeout time.Duration) Opener {
	return func(name string, baud int) (ByteSource, error) {
		mode := &serial.Mode{BaudRate: baud}
		port, err := serial.Open(name, mode)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		if err := port.SetReadTimeout(readTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
		return port, nil
	}
}
