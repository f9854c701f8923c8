// Package telemetry holds the shared session state written by the ingest
// loop and read by the command dispatcher: monotonically increasing counters
// and the in-memory record store.
package telemetry

import "sync/atomic"

// Stats are the per-session counters. Each counter has exactly one writer
// (the ingest loop, or the rate sampler for Rate); readers take point-in-time
// snapshots. All fields are atomics so snapshots are safe without a lock.
type Stats struct {
	bytesReceived      atomic.Uint64
	framesAccepted     atomic.Uint64
	rejectedBytes      atomic.Uint64
	readErrors         atomic.Uint64
	checksumMismatches atomic.Uint64
	rate               atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters. Values are mutually
// consistent only to within one ingest iteration; callers must not assume
// the counters were read atomically as a group.
type Snapshot struct {
	BytesReceived      uint64
	FramesAccepted     uint64
	RejectedBytes      uint64
	ReadErrors         uint64
	ChecksumMismatches uint64
	Rate               uint64
}

// Errors returns the combined error count reported to callers: bytes
// rejected during resync plus transient read errors.
func (s Snapshot) Errors() uint64 {
	return s.RejectedBytes + s.ReadErrors
}

// AddBytes records n bytes read from the source.
func (s *Stats) AddBytes(n int) {
	s.bytesReceived.Add(uint64(n))
}

// AddFrames records n accepted frames.
func (s *Stats) AddFrames(n int) {
	s.framesAccepted.Add(uint64(n))
}

// AddRejected records n bytes dropped during resync.
func (s *Stats) AddRejected(n int) {
	s.rejectedBytes.Add(uint64(n))
}

// AddReadError records one transient source read error.
func (s *Stats) AddReadError() {
	s.readErrors.Add(1)
}

// AddChecksumMismatch records one frame whose stored checksum differed from
// the recomputed value. Observability only; such frames are still accepted.
func (s *Stats) AddChecksumMismatch() {
	s.checksumMismatches.Add(1)
}

// SetRate publishes the current ingest rate in bytes per second.
// Written only by the session's rate sampler.
func (s *Stats) SetRate(bytesPerSec uint64) {
	s.rate.Store(bytesPerSec)
}

// BytesReceived returns the current byte count.
func (s *Stats) BytesReceived() uint64 {
	return s.bytesReceived.Load()
}

// Snapshot returns a point-in-time copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		BytesReceived:      s.bytesReceived.Load(),
		FramesAccepted:     s.framesAccepted.Load(),
		RejectedBytes:      s.rejectedBytes.Load(),
		ReadErrors:         s.readErrors.Load(),
		ChecksumMismatches: s.checksumMismatches.Load(),
		Rate:               s.rate.Load(),
	}
}
