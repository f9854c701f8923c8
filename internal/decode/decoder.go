// Package decode implements the byte-synchronous resync decoder that
// recovers fixed-size telemetry frames from an unframed serial byte stream.
//
// The decoder is a pure state machine with no I/O. The caller appends raw
// bytes with Feed and extracts frames with Next or Drain; unconsumed bytes
// persist inside the decoder across calls, so the stream may be delivered in
// arbitrarily small chunks without changing the decoded result.
package decode

import (
	"encoding/binary"

	"github.com/hil-labs/wireship/internal/domain"
)

// Outcome classifies one decoder step over the buffer head.
type Outcome int

const (
	// OutcomeNeedMore means no progress is possible until more bytes arrive.
	OutcomeNeedMore Outcome = iota

	// OutcomeReject means one byte was dropped from the front of the buffer
	// because it cannot begin a valid frame.
	OutcomeReject

	// OutcomeFrame means a full frame was decoded and consumed.
	OutcomeFrame
)

// magicLen is the number of bytes needed to test for a frame start.
const magicLen = 4

// Decoder accumulates stream bytes and extracts frames. The zero value is
// ready to use. Not safe for concurrent use; the ingest loop is the sole
// caller during a session.
type Decoder struct {
	buf []byte
	pos int
}

// Feed appends raw stream bytes to the pending buffer.
func (d *Decoder) Feed(p []byte) {
	// Reclaim consumed prefix before growing the buffer.
	if d.pos > 0 {
		d.buf = append(d.buf[:0], d.buf[d.pos:]...)
		d.pos = 0
	}
	d.buf = append(d.buf, p...)
}

// Buffered reports the number of pending bytes not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.pos
}

// Next performs one decoder step. It returns the decoded frame only when the
// outcome is OutcomeFrame.
//
// The step rules, applied to the front of the pending buffer:
//   - fewer than 4 bytes pending: OutcomeNeedMore
//   - first 4 bytes are not the magic constant: drop exactly one byte and
//     return OutcomeReject (a valid frame may begin one byte later, so resync
//     must advance byte-at-a-time)
//   - magic matches but fewer than 64 bytes pending: OutcomeNeedMore (the
//     magic bytes stay pending, they belong to the incomplete frame)
//   - magic matches with 64 or more bytes pending: decode and consume the
//     64-byte window, return OutcomeFrame
func (d *Decoder) Next() (domain.Frame, Outcome) {
	pending := d.buf[d.pos:]
	if len(pending) < magicLen {
		return domain.Frame{}, OutcomeNeedMore
	}
	if binary.LittleEndian.Uint32(pending) != domain.Magic {
		d.pos++
		return domain.Frame{}, OutcomeReject
	}
	if len(pending) < domain.FrameSize {
		return domain.Frame{}, OutcomeNeedMore
	}
	f, err := domain.FrameFromBytes(pending[:domain.FrameSize])
	if err != nil {
		// Unreachable: magic and length were checked above.
		d.pos++
		return domain.Frame{}, OutcomeReject
	}
	d.pos += domain.FrameSize
	return f, OutcomeFrame
}

// Drain repeatedly steps the decoder until no further progress is possible.
// It returns the newly decoded frames in stream order and the number of
// bytes rejected during resync.
func (d *Decoder) Drain() ([]domain.Frame, int) {
	var frames []domain.Frame
	rejected := 0
	for {
		f, outcome := d.Next()
		switch outcome {
		case OutcomeFrame:
			frames = append(frames, f)
		case OutcomeReject:
			rejected++
		case OutcomeNeedMore:
			return frames, rejected
		}
	}
}
