package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hil-labs/wireship/internal/domain"
	"github.com/hil-labs/wireship/internal/export"
	"github.com/hil-labs/wireship/internal/ingest"
	"github.com/hil-labs/wireship/internal/serialport"
	"github.com/hil-labs/wireship/internal/telemetry"
	"github.com/hil-labs/wireship/pkg/log"
)

// Controller owns the single daemon session. Exactly one exists per process.
// All public methods are safe for concurrent use; the mutex serializes
// lifecycle transitions while the ingest loop publishes through the
// telemetry types, which have their own synchronization.
type Controller struct {
	cfg    Config
	open   serialport.Opener
	sink   StatusFunc
	logger log.Logger

	mu         sync.Mutex
	state      State
	source     serialport.ByteSource
	cancel     context.CancelFunc
	done       chan struct{}
	stats      *telemetry.Stats
	store      *telemetry.Store
	recordPath string
	fail       *failure
}

// failure is one session's fatal-error cell. It carries its own lock because
// the ingest goroutine records the error while Stop may be holding the
// controller mutex waiting for that same goroutine. Each Start allocates a
// fresh cell so a loop that outlived its stop timeout cannot mark a later
// session as failed.
type failure struct {
	mu  sync.Mutex
	err error
}

func (f *failure) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *failure) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (c *Controller) lastFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail.get()
}

// New creates a controller in the Idle state. sink may be nil; when set it
// receives a Status once per StatusInterval while streaming.
func New(cfg Config, open serialport.Opener, sink StatusFunc, logger log.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		open:   open,
		sink:   sink,
		logger: logger,
		state:  StateIdle,
		stats:  &telemetry.Stats{},
		store:  &telemetry.Store{},
		fail:   &failure{},
	}
}

// Start transitions Idle -> Streaming: opens the byte source, resets the
// record store and stats, and launches the ingest loop. Returns
// domain.ErrAlreadyRunning while a session is active, including one whose
// source already failed but has not been reaped by Stop. On open failure the
// session stays Idle.
func (c *Controller) Start(port string, baud int, recordPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStreaming {
		return domain.ErrAlreadyRunning
	}

	source, err := c.open(port, baud)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	// Fresh store, stats, and failure cell per session. Allocating rather
	// than resetting means an ingest loop that outlived its stop timeout
	// keeps writing to the old session's objects and can never leak stale
	// frames or a late fatal error into this one.
	c.store = &telemetry.Store{}
	c.stats = &telemetry.Stats{}
	c.recordPath = recordPath
	c.fail = &failure{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.source = source
	c.cancel = cancel
	c.done = done
	c.state = StateStreaming

	go c.run(ctx, c.cfg, source, c.store, c.stats, c.fail, done)

	c.logger.Info("session started",
		log.String("port", port),
		log.Int("baud", baud),
		log.Bool("recording", recordPath != ""),
	)
	return nil
}

// run hosts the ingest loop and the rate sampler for one session. It exits
// when the loop finishes, either on stop or on a fatal source error. cfg is
// a snapshot taken at start so tunable updates never race with a live
// session.
func (c *Controller) run(ctx context.Context, cfg Config, source serialport.ByteSource, store *telemetry.Store, stats *telemetry.Stats, fail *failure, done chan struct{}) {
	defer close(done)

	sampleCtx, stopSampler := context.WithCancel(ctx)
	defer stopSampler()
	go c.sample(sampleCtx, cfg.StatusInterval, stats)

	err := ingest.Run(ctx, ingest.Config{
		PollInterval: cfg.PollInterval,
		ReadBufBytes: cfg.ReadBufBytes,
	}, source, store, stats, c.logger)
	if err != nil {
		fail.set(err)
		c.logger.Error("session failed", log.Err(err))
	}
}

// sample publishes the byte rate once per interval and forwards a status
// snapshot to the sink. It is the sole writer of the rate counter.
func (c *Controller) sample(ctx context.Context, interval time.Duration, stats *telemetry.Stats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastBytes := stats.BytesReceived()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			stats.SetRate(0)
			return
		case <-ticker.C:
			now := time.Now()
			elapsed := now.Sub(lastAt).Seconds()
			if elapsed <= 0 {
				continue
			}
			bytes := stats.BytesReceived()
			stats.SetRate(uint64(float64(bytes-lastBytes) / elapsed))
			lastBytes = bytes
			lastAt = now

			if c.sink != nil {
				c.sink(Status{Running: true, Stats: stats.Snapshot()})
			}
		}
	}
}

// UpdateTunables replaces the controller's timing configuration. An active
// session keeps the values it started with; new values apply from the next
// Start.
func (c *Controller) UpdateTunables(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// Stop transitions Streaming -> Idle: signals the ingest loop, waits for it
// with the stop timeout, closes the source, and persists the record file if
// one was configured. The final stats snapshot is returned even when an
// error is. Returns domain.ErrNotRunning when Idle, domain.ErrShutdownTimeout
// when the loop does not finish in time, or the session's fatal source error
// if one occurred mid-stream.
func (c *Controller) Stop() (telemetry.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStreaming {
		return telemetry.Snapshot{}, domain.ErrNotRunning
	}

	// Signal first, then join, then close: the loop must observe the stop
	// before the source goes away under it.
	c.cancel()
	var stopErr error
	select {
	case <-c.done:
	case <-time.After(c.cfg.StopTimeout):
		stopErr = domain.ErrShutdownTimeout
		c.logger.Warn("ingest loop did not stop in time",
			log.Duration("timeout", c.cfg.StopTimeout),
		)
	}

	if err := c.source.Close(); err != nil {
		c.logger.Warn("close source", log.Err(err))
	}

	c.state = StateIdle
	c.source = nil
	c.cancel = nil
	c.done = nil

	if err := c.fail.get(); stopErr == nil && err != nil {
		stopErr = err
	}

	snap := c.stats.Snapshot()
	snap.Rate = 0

	if c.recordPath != "" && c.store.Len() > 0 {
		if err := export.RecordFile(c.recordPath, c.store.Snapshot()); err != nil {
			c.logger.Error("persist record file", log.Err(err))
			if stopErr == nil {
				stopErr = err
			}
		} else {
			c.logger.Info("record file written",
				log.String("path", c.recordPath),
				log.Int("frames", c.store.Len()),
			)
		}
	}

	c.logger.Info("session stopped",
		log.Uint64("frames", snap.FramesAccepted),
		log.Uint64("bytes", snap.BytesReceived),
		log.Uint64("rejected_bytes", snap.RejectedBytes),
		log.Uint64("checksum_mismatches", snap.ChecksumMismatches),
	)
	return snap, stopErr
}

// StopIfStreaming stops the session if one is active. The bool reports
// whether a session was actually stopped.
func (c *Controller) StopIfStreaming() (telemetry.Snapshot, bool, error) {
	snap, err := c.Stop()
	if errors.Is(err, domain.ErrNotRunning) {
		return telemetry.Snapshot{}, false, nil
	}
	return snap, true, err
}

// Status returns the current state and a stats snapshot. Valid in either
// state; after stop it reports the finished session's totals with a zero
// rate.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.stats.Snapshot()
	running := c.state == StateStreaming
	if !running {
		snap.Rate = 0
	}
	return Status{Running: running, Stats: snap}
}

// Export writes every stored frame to a CSV file at path and returns the
// frame count. Valid in either state. Returns domain.ErrNoData when the
// record store is empty.
func (c *Controller) Export(path string) (int, error) {
	c.mu.Lock()
	frames := c.store.Snapshot()
	c.mu.Unlock()
	if len(frames) == 0 {
		return 0, domain.ErrNoData
	}
	if err := export.CSVFile(path, frames); err != nil {
		return 0, err
	}
	c.logger.Info("exported records",
		log.Int("frames", len(frames)),
		log.String("path", path),
	)
	return len(frames), nil
}
