package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hil-labs/wireship/internal/domain"
	"github.com/hil-labs/wireship/internal/telemetry"
	"github.com/hil-labs/wireship/pkg/log"
)

// scriptedSource replays fixed chunks, one per Read call, then idles
// returning (0, nil) like a serial port read timeout.
type scriptedSource struct {
	mu     sync.Mutex
	chunks [][]byte
	errs   []error
	idle   chan struct{} // closed once the script is exhausted
	once   sync.Once
}

func newScriptedSource(chunks [][]byte, errs []error) *scriptedSource {
	return &scriptedSource{chunks: chunks, errs: errs, idle: make(chan struct{})}
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) > 0 {
		n := copy(p, s.chunks[0])
		s.chunks = s.chunks[1:]
		return n, nil
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	s.once.Do(func() { close(s.idle) })
	return 0, nil
}

func (s *scriptedSource) Close() error { return nil }

func wireFrame(seq uint32) []byte {
	f := domain.Frame{Seq: seq, TimestampMs: uint64(seq), SensorTemp: 2500}
	f.Checksum = f.ExpectedChecksum()
	return f.AppendWire(nil)
}

func runUntilIdle(t *testing.T, src *scriptedSource, store *telemetry.Store, stats *telemetry.Stats) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{PollInterval: time.Millisecond}, src, store, stats, log.NewNoopLogger())
	}()

	select {
	case err := <-errCh:
		// Loop ended on its own (fatal source error).
		return err
	case <-src.idle:
	case <-time.After(5 * time.Second):
		t.Fatal("source never went idle")
	}

	cancel()
	select {
	case err := <-errCh:
		return err
	case <-time.After(time.Second):
		t.Fatal("ingest loop did not observe cancellation")
		return nil
	}
}

func TestIngestPublishesFramesAndStats(t *testing.T) {
	stream := wireFrame(1)
	stream = append(stream, 0x01, 0x02, 0x03)
	stream = append(stream, wireFrame(2)...)

	src := newScriptedSource([][]byte{stream}, nil)
	var store telemetry.Store
	var stats telemetry.Stats

	if err := runUntilIdle(t, src, &store, &stats); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap := stats.Snapshot()
	if snap.FramesAccepted != 2 {
		t.Fatalf("frames accepted: got %d want 2", snap.FramesAccepted)
	}
	if snap.RejectedBytes != 3 {
		t.Fatalf("rejected bytes: got %d want 3", snap.RejectedBytes)
	}
	if want := uint64(len(stream)); snap.BytesReceived != want {
		t.Fatalf("bytes received: got %d want %d", snap.BytesReceived, want)
	}

	frames := store.Snapshot()
	if len(frames) != 2 || frames[0].Seq != 1 || frames[1].Seq != 2 {
		t.Fatalf("store contents wrong: %+v", frames)
	}
}

func TestIngestSplitDelivery(t *testing.T) {
	wire := wireFrame(1)
	chunks := [][]byte{wire[:10], wire[10:40], wire[40:]}

	src := newScriptedSource(chunks, nil)
	var store telemetry.Store
	var stats telemetry.Stats

	if err := runUntilIdle(t, src, &store, &stats); err != nil {
		t.Fatalf("run: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("expected 1 frame from split delivery, got %d", store.Len())
	}
	if snap := stats.Snapshot(); snap.RejectedBytes != 0 {
		t.Fatalf("expected no rejects, got %d", snap.RejectedBytes)
	}
}

func TestIngestTransientErrorContinues(t *testing.T) {
	src := newScriptedSource(
		[][]byte{wireFrame(1)},
		[]error{errors.New("parity error")},
	)
	var store telemetry.Store
	var stats telemetry.Stats

	if err := runUntilIdle(t, src, &store, &stats); err != nil {
		t.Fatalf("transient error must not end the loop: %v", err)
	}

	snap := stats.Snapshot()
	if snap.ReadErrors != 1 {
		t.Fatalf("read errors: got %d want 1", snap.ReadErrors)
	}
	if snap.FramesAccepted != 1 {
		t.Fatalf("frames accepted: got %d want 1", snap.FramesAccepted)
	}
}

func TestIngestFatalErrorEndsLoop(t *testing.T) {
	src := newScriptedSource([][]byte{wireFrame(1)}, []error{io.EOF})
	var store telemetry.Store
	var stats telemetry.Stats

	ctx := context.Background()
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, Config{PollInterval: time.Millisecond}, src, &store, &stats, log.NewNoopLogger())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF cause, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not end on fatal error")
	}

	if store.Len() != 1 {
		t.Fatalf("frames read before the failure must be kept, got %d", store.Len())
	}
}

func TestIngestChecksumMismatchCounted(t *testing.T) {
	f := domain.Frame{Seq: 1, SensorTemp: 2500}
	f.Checksum = f.ExpectedChecksum() + 1
	src := newScriptedSource([][]byte{f.AppendWire(nil)}, nil)
	var store telemetry.Store
	var stats telemetry.Stats

	if err := runUntilIdle(t, src, &store, &stats); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap := stats.Snapshot()
	if snap.FramesAccepted != 1 {
		t.Fatalf("mismatched checksum must still be accepted, frames=%d", snap.FramesAccepted)
	}
	if snap.ChecksumMismatches != 1 {
		t.Fatalf("checksum mismatches: got %d want 1", snap.ChecksumMismatches)
	}
}
