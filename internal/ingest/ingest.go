// Package ingest runs the background read loop for one streaming session:
// it polls the byte source, drives the resync decoder, and publishes decoded
// frames and counter deltas to the shared session state.
package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hil-labs/wireship/internal/decode"
	"github.com/hil-labs/wireship/internal/serialport"
	"github.com/hil-labs/wireship/internal/telemetry"
	"github.com/hil-labs/wireship/pkg/log"
)

// DefaultReadBufBytes is the per-iteration read buffer size.
const DefaultReadBufBytes = 4096

// Config contains tuning for the ingest loop.
type Config struct {
	// PollInterval is the wait between polls when the source has no data.
	// It bounds how long a pending stop signal can go unobserved, together
	// with the source's own read timeout.
	PollInterval time.Duration

	// ReadBufBytes is the read buffer size. Zero means DefaultReadBufBytes.
	ReadBufBytes int
}

// Run executes the ingest loop until ctx is canceled or the source fails
// fatally. Cancellation returns nil; a fatal source error is returned after
// the stats have been updated. Transient read errors are counted and the
// loop continues.
//
// Run never closes the source; the session controller owns that, and does it
// only after Run has returned or timed out.
func Run(ctx context.Context, cfg Config, src io.Reader, store *telemetry.Store, stats *telemetry.Stats, logger log.Logger) error {
	size := cfg.ReadBufBytes
	if size <= 0 {
		size = DefaultReadBufBytes
	}
	buf := make([]byte, size)
	var dec decode.Decoder

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			stats.AddBytes(n)
			dec.Feed(buf[:n])
			frames, rejected := dec.Drain()
			if rejected > 0 {
				stats.AddRejected(rejected)
			}
			if len(frames) > 0 {
				store.Append(frames...)
				stats.AddFrames(len(frames))
				for _, f := range frames {
					if f.Checksum != f.ExpectedChecksum() {
						stats.AddChecksumMismatch()
						logger.Debug("checksum mismatch",
							log.Uint64("seq", uint64(f.Seq)),
						)
					}
				}
			}
		}
		if err != nil {
			if serialport.IsFatal(err) {
				logger.Error("source read failed", log.Err(err))
				return fmt.Errorf("read source: %w", err)
			}
			stats.AddReadError()
			logger.Warn("transient read error", log.Err(err))
		}
		if n == 0 {
			// Source had nothing (read timeout) or errored; wait out the
			// poll interval but stay responsive to stop.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cfg.PollInterval):
			}
		}
	}
}
