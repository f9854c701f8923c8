// Package wireship provides a streaming decoder for fixed-size binary
// telemetry frames carried over an unframed serial byte stream.
//
// Example usage:
//
//	var d wireship.Decoder
//	d.Feed(chunk)
//	frames, rejected := d.Drain()
//	for _, f := range frames {
//	    fmt.Println(f.Seq, f.SensorTemp)
//	}
//
// The full daemon, including the serial session and the JSON command
// protocol, lives in cmd/wireshipd.
package wireship

import (
	"github.com/hil-labs/wireship/internal/decode"
	"github.com/hil-labs/wireship/internal/domain"
)

// Frame is one decoded telemetry frame.
type Frame = domain.Frame

// Decoder recovers frames from stream bytes delivered in arbitrary chunks.
// The zero value is ready to use.
type Decoder = decode.Decoder

// Wire layout constants for the frame format.
const (
	// FrameSize is the fixed on-wire size of a frame in bytes.
	FrameSize = domain.FrameSize

	// Magic is the little-endian frame start marker.
	Magic = domain.Magic
)

// ParseFrame decodes a single frame from the first FrameSize bytes of b.
// It returns domain errors for a short buffer or a bad start marker; use the
// Decoder for resynchronizing over a stream.
func ParseFrame(b []byte) (Frame, error) {
	return domain.FrameFromBytes(b)
}
