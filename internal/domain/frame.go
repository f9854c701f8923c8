package domain

import (
	"encoding/binary"
	"strconv"
)

// Wire layout constants for the 64-byte telemetry frame emitted by the
// firmware over the serial link. All multi-byte fields are little-endian.
const (
	// FrameSize is the fixed on-wire size of one frame in bytes.
	FrameSize = 64

	// Magic marks the start of a frame in the otherwise unframed stream.
	Magic uint32 = 0xDEADBEEF
)

// Field offsets within the 64-byte window.
const (
	offMagic     = 0
	offSeq       = 4
	offTimestamp = 8
	offCounter   = 16
	offTemp      = 20
	offAccelX    = 24
	offAccelY    = 26
	offAccelZ    = 28
	offState     = 30
	offChecksum  = 60
	// bytes 31..59 are reserved padding
)

// Frame is one decoded telemetry record. A Frame is only ever constructed
// from a byte window whose magic matched; the type has no invalid variant.
// Instances are immutable once decoded.
//
// The firmware writes a checksum at offset 60 (wrapping u32 sum of the magic,
// sequence, both timestamp halves, counter and temperature words), but the
// source system never validated it on receive and this decoder preserves that
// behavior: frames are accepted on magic alone. ExpectedChecksum recomputes
// the sum so callers can observe mismatches without changing accept
// semantics.
type Frame struct {
	// Seq is the sequence number assigned by the firmware.
	Seq uint32

	// TimestampMs is the firmware uptime timestamp in milliseconds.
	TimestampMs uint64

	// Counter is the firmware's free-running counter value.
	Counter uint32

	// SensorTemp is the temperature reading in centi-degrees Celsius.
	SensorTemp int32

	// AccelX, AccelY, AccelZ are raw accelerometer axis readings.
	AccelX int16
	AccelY int16
	AccelZ int16

	// State is the firmware FSM state byte.
	State uint8

	// Checksum is the checksum word as received, stored but not validated.
	Checksum uint32
}

// FrameFromBytes decodes one frame from a 64-byte window.
// Returns ErrShortFrame if b holds fewer than FrameSize bytes and
// ErrBadMagic if the window does not start with the magic constant.
func FrameFromBytes(b []byte) (Frame, error) {
	if len(b) < FrameSize {
		return Frame{}, ErrShortFrame
	}
	if binary.LittleEndian.Uint32(b[offMagic:]) != Magic {
		return Frame{}, ErrBadMagic
	}
	return Frame{
		Seq:         binary.LittleEndian.Uint32(b[offSeq:]),
		TimestampMs: binary.LittleEndian.Uint64(b[offTimestamp:]),
		Counter:     binary.LittleEndian.Uint32(b[offCounter:]),
		SensorTemp:  int32(binary.LittleEndian.Uint32(b[offTemp:])),
		AccelX:      int16(binary.LittleEndian.Uint16(b[offAccelX:])),
		AccelY:      int16(binary.LittleEndian.Uint16(b[offAccelY:])),
		AccelZ:      int16(binary.LittleEndian.Uint16(b[offAccelZ:])),
		State:       b[offState],
		Checksum:    binary.LittleEndian.Uint32(b[offChecksum:]),
	}, nil
}

// AppendWire appends the 64-byte wire encoding of the frame to dst and
// returns the extended slice. Used for record-file persistence and test
// stream construction; the daemon itself never transmits frames.
func (f Frame) AppendWire(dst []byte) []byte {
	var w [FrameSize]byte
	binary.LittleEndian.PutUint32(w[offMagic:], Magic)
	binary.LittleEndian.PutUint32(w[offSeq:], f.Seq)
	binary.LittleEndian.PutUint64(w[offTimestamp:], f.TimestampMs)
	binary.LittleEndian.PutUint32(w[offCounter:], f.Counter)
	binary.LittleEndian.PutUint32(w[offTemp:], uint32(f.SensorTemp))
	binary.LittleEndian.PutUint16(w[offAccelX:], uint16(f.AccelX))
	binary.LittleEndian.PutUint16(w[offAccelY:], uint16(f.AccelY))
	binary.LittleEndian.PutUint16(w[offAccelZ:], uint16(f.AccelZ))
	w[offState] = f.State
	binary.LittleEndian.PutUint32(w[offChecksum:], f.Checksum)
	return append(dst, w[:]...)
}

// ExpectedChecksum recomputes the checksum the firmware would have written:
// the wrapping sum of the magic, sequence, high and low timestamp words,
// counter and temperature, as unsigned 32-bit values.
func (f Frame) ExpectedChecksum() uint32 {
	return Magic +
		f.Seq +
		uint32(f.TimestampMs>>32) +
		uint32(f.TimestampMs) +
		f.Counter +
		uint32(f.SensorTemp)
}

// CSVHeader returns the column names for CSV export, in row order.
func CSVHeader() []string {
	return []string{
		"seq", "timestamp_ms", "counter",
		"sensor_temp_cC", "sensor_temp_C",
		"accel_x", "accel_y", "accel_z",
		"state",
	}
}

// CSVRow renders the frame as one CSV record matching CSVHeader.
// sensor_temp_C is the centi-degree reading divided by 100.
func (f Frame) CSVRow() []string {
	return []string{
		strconv.FormatUint(uint64(f.Seq), 10),
		strconv.FormatUint(f.TimestampMs, 10),
		strconv.FormatUint(uint64(f.Counter), 10),
		strconv.FormatInt(int64(f.SensorTemp), 10),
		strconv.FormatFloat(float64(f.SensorTemp)/100.0, 'f', 2, 64),
		strconv.FormatInt(int64(f.AccelX), 10),
		strconv.FormatInt(int64(f.AccelY), 10),
		strconv.FormatInt(int64(f.AccelZ), 10),
		strconv.FormatUint(uint64(f.State), 10),
	}
}
