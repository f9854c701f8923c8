package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hil-labs/wireship/internal/domain"
	"github.com/hil-labs/wireship/internal/session"
	"github.com/hil-labs/wireship/pkg/log"
)

// Config contains the loop's fallback values for start requests.
type Config struct {
	// DefaultPort is used when a start request names no port.
	DefaultPort string

	// DefaultBaud is used when a start request names no baud rate.
	DefaultBaud int
}

// Loop reads requests line by line and dispatches them to the session
// controller. A malformed line produces an error response and the loop
// continues; only quit, end of input, or a transport read error end it, each
// with an implicit stop if a session is streaming.
type Loop struct {
	cfg    Config
	ctrl   *session.Controller
	out    *Writer
	logger log.Logger
}

// NewLoop creates a command loop.
func NewLoop(cfg Config, ctrl *session.Controller, out *Writer, logger log.Logger) *Loop {
	if cfg.DefaultBaud <= 0 {
		cfg.DefaultBaud = 115200
	}
	return &Loop{cfg: cfg, ctrl: ctrl, out: out, logger: logger}
}

// Run processes requests from r until quit or end of input.
func (l *Loop) Run(r io.Reader) error {
	l.out.OK("wireship daemon ready")

	// Lines are read with ReadString rather than a Scanner: request lines
	// have no size contract, and an oversized line must produce a malformed-
	// request response rather than end the loop.
	br := bufio.NewReader(r)
	var readErr error
	for readErr == nil {
		var raw string
		raw, readErr = br.ReadString('\n')
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		req, err := decodeRequest(line)
		if err != nil {
			l.out.Error("Invalid JSON: " + err.Error())
			continue
		}

		l.logger.Debug("command received", log.String("cmd", req.Cmd))
		if quit := l.dispatch(req); quit {
			return nil
		}
	}

	// Input closed under us: stop any active session before ending.
	if snap, stopped, err := l.ctrl.StopIfStreaming(); stopped {
		if err != nil {
			l.out.StoppedWithError(err.Error(), snap)
		} else {
			l.out.Stopped(snap)
		}
	}
	if errors.Is(readErr, io.EOF) {
		return nil
	}
	return readErr
}

// dispatch handles one request. The bool reports whether the loop must exit.
// Unknown tags are rejected explicitly.
func (l *Loop) dispatch(req Request) bool {
	switch req.Cmd {
	case "start":
		l.handleStart(req)
	case "stop":
		l.handleStop()
	case "status":
		l.out.Data(l.ctrl.Status())
	case "export":
		l.handleExport(req)
	case "quit":
		if snap, stopped, err := l.ctrl.StopIfStreaming(); stopped {
			if err != nil {
				l.out.StoppedWithError(err.Error(), snap)
			} else {
				l.out.Stopped(snap)
			}
		}
		l.out.OK("Goodbye")
		return true
	default:
		l.out.Error("Unknown command: " + req.Cmd)
	}
	return false
}

func (l *Loop) handleStart(req Request) {
	port := req.Port
	if port == "" {
		port = l.cfg.DefaultPort
	}
	if port == "" {
		l.out.Error("No port specified")
		return
	}
	baud := req.Baudrate
	if baud <= 0 {
		baud = l.cfg.DefaultBaud
	}

	err := l.ctrl.Start(port, baud, req.Record)
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		l.out.Error("Already running")
	case err != nil:
		l.out.Error(err.Error())
	default:
		l.out.OK(fmt.Sprintf("Started streaming on %s @ %d baud", port, baud))
	}
}

func (l *Loop) handleStop() {
	snap, err := l.ctrl.Stop()
	switch {
	case errors.Is(err, domain.ErrNotRunning):
		l.out.Error("Not running")
	case err != nil:
		l.out.StoppedWithError(err.Error(), snap)
	default:
		l.out.Stopped(snap)
	}
}

func (l *Loop) handleExport(req Request) {
	format := req.Format
	if format == "" {
		format = "csv"
	}
	if format != "csv" {
		l.out.Error("Unknown format: " + format)
		return
	}
	output := req.Output
	if output == "" {
		output = "data.csv"
	}

	n, err := l.ctrl.Export(output)
	switch {
	case errors.Is(err, domain.ErrNoData):
		l.out.Error("No data to export")
	case err != nil:
		l.out.Error(err.Error())
	default:
		l.out.OK(fmt.Sprintf("Exported %d packets to %s", n, output))
	}
}
